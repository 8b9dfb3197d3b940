// Package mocks provides test doubles for the google clients.
package mocks

import (
	"context"

	google "github.com/sells-group/fieldsnap/pkg/google"
	mock "github.com/stretchr/testify/mock"
)

// MockPlacesClient is a mock type for the PlacesClient interface.
type MockPlacesClient struct {
	mock.Mock
}

// TextSearch provides a mock function with given fields: ctx, query
func (_m *MockPlacesClient) TextSearch(ctx context.Context, query string) (*google.TextSearchResponse, error) {
	ret := _m.Called(ctx, query)

	if len(ret) == 0 {
		panic("no return value specified for TextSearch")
	}

	var r0 *google.TextSearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*google.TextSearchResponse, error)); ok {
		return rf(ctx, query)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *google.TextSearchResponse); ok {
		r0 = rf(ctx, query)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*google.TextSearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, query)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockPlacesClient creates a new instance of MockPlacesClient.
func NewMockPlacesClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPlacesClient {
	mock := &MockPlacesClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
