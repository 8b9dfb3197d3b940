package mocks

import (
	"context"

	google "github.com/sells-group/fieldsnap/pkg/google"
	mock "github.com/stretchr/testify/mock"
)

// MockVisionClient is a mock type for the VisionClient interface.
type MockVisionClient struct {
	mock.Mock
}

// DetectText provides a mock function with given fields: ctx, img
func (_m *MockVisionClient) DetectText(ctx context.Context, img google.VisionImage) (*google.TextDetection, error) {
	ret := _m.Called(ctx, img)

	if len(ret) == 0 {
		panic("no return value specified for DetectText")
	}

	var r0 *google.TextDetection
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, google.VisionImage) (*google.TextDetection, error)); ok {
		return rf(ctx, img)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.TextDetection)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockVisionClient creates a new instance of MockVisionClient.
func NewMockVisionClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockVisionClient {
	mock := &MockVisionClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
