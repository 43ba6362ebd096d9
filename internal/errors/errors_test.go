package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Empty(err.Details)

	err = New(ErrDeviceNotFound, "config index 3")
	suite.NotNil(err)
	suite.Equal(ErrDeviceNotFound, err.Code)
	suite.Equal("device not found", err.Message)
	suite.Equal("config index 3", err.Details)

	err = New(ErrSDKFailure, "FDwfAnalogOutConfigure", "channel: 1")
	suite.Equal("FDwfAnalogOutConfigure; channel: 1", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidParam, "voltage %v outside [%v, %v]", 6.0, 0.0, 5.0)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("voltage 6 outside [0, 5]", err.Details)
}

func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("bulk transfer stalled")
	wrappedErr := Wrap(originalErr, ErrUSBTransfer)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrUSBTransfer, wrappedErr.Code)
	suite.Equal("bulk transfer stalled", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	nilErr := Wrap(nil, ErrUnknown)
	suite.Nil(nilErr)

	// wrapping an AppError keeps the original code
	appErr := New(ErrNotAcquired, "session already closed")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "extra context")
	suite.Equal(ErrNotAcquired, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "extra context")
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("no such device")
	wrappedErr := Wrapf(originalErr, ErrDeviceNotFound, "serial %s", "210321A1B2C3")
	suite.NotNil(wrappedErr)
	suite.Equal(ErrDeviceNotFound, wrappedErr.Code)
	suite.Equal("serial 210321A1B2C3", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrNotAcquired)
	suite.True(Is(err, ErrNotAcquired))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrNotAcquired))

	standardErr := errors.New("plain error")
	suite.False(Is(standardErr, ErrUnknown))
}

func (suite *ErrorsTestSuite) TestStdErrorsIs() {
	// errors.Is should match by code through the Is method
	wrapped := Wrap(New(ErrNotConfigured), ErrUnknown)
	suite.True(errors.Is(wrapped, New(ErrNotConfigured)))
}

func (suite *ErrorsTestSuite) TestGetCode() {
	appErr := New(ErrOvercurrent)
	suite.Equal(ErrOvercurrent, GetCode(appErr))

	standardErr := errors.New("plain error")
	suite.Equal(ErrUnknown, GetCode(standardErr))

	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{
		Code:    ErrNotFound,
		Message: "not found",
	}
	suite.Equal("[1002] not found", err.Error())

	err.Details = "capture id: 42"
	suite.Equal("[1002] not found: capture id: 42", err.Error())
}

func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("root cause")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())

	err := New(ErrUnknown)
	suite.Nil(err.Unwrap())
}

func (suite *ErrorsTestSuite) TestWithDetails() {
	err := New(ErrInvalidParam)
	err.WithDetails("frequency must be positive")
	suite.Equal("frequency must be positive", err.Details)
}

func (suite *ErrorsTestSuite) TestWithCause() {
	err := New(ErrStorageQuery)
	cause := errors.New("no such table: captures")
	err.WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("no such table: captures", err.Details)

	err2 := New(ErrStorageQuery, "list captures")
	err2.WithCause(cause)
	suite.Equal(cause, err2.Cause)
	suite.Equal("list captures", err2.Details)
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrRequestDecode, 400},
		{ErrNotFound, 404},
		{ErrDeviceNotFound, 404},
		{ErrTimeout, 408},
		{ErrDeviceBusy, 409},
		{ErrStorageConnect, 503},
		{ErrUnknown, 500},
		{ErrSDKFailure, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "code %d should map to HTTP %d", tc.code, tc.expected)
	}
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	retryableErrors := []ErrorCode{
		ErrTimeout,
		ErrDeviceBusy,
		ErrUSBTransfer,
		ErrStorageConnect,
	}

	for _, code := range retryableErrors {
		err := New(code)
		suite.True(IsRetryable(err), "code %d should be retryable", code)
	}

	nonRetryableErrors := []ErrorCode{
		ErrInvalidParam,
		ErrNotFound,
		ErrNotAcquired,
		ErrOvercurrent,
	}

	for _, code := range nonRetryableErrors {
		err := New(code)
		suite.False(IsRetryable(err), "code %d should not be retryable", code)
	}

	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotNil(err.Stack)
	suite.Greater(len(err.Stack), 0)

	stackStr := err.GetStack()
	suite.NotEmpty(stackStr)
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "capture not found")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("unknown error", err.Message)
}

func (suite *ErrorsTestSuite) TestDeviceErrors() {
	deviceErrors := map[ErrorCode]string{
		ErrDeviceNotFound:    "device not found",
		ErrNotAcquired:       "device not acquired",
		ErrNotConfigured:     "acquisition not configured",
		ErrAcquisitionFailed: "acquisition failed",
		ErrSDKFailure:        "vendor SDK call failed",
		ErrDeviceBusy:        "device busy",
		ErrOvercurrent:       "overcurrent condition",
		ErrUSBTransfer:       "usb transfer failed",
	}

	for code, expectedMsg := range deviceErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

func (suite *ErrorsTestSuite) TestConfigErrors() {
	configErrors := map[ErrorCode]string{
		ErrConfigLoad:     "failed to load configuration",
		ErrConfigParse:    "failed to parse configuration",
		ErrConfigValidate: "configuration validation failed",
		ErrConfigMissing:  "configuration value missing",
	}

	for code, expectedMsg := range configErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
