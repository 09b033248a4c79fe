// Package mocks provides gomock implementations of the server's collaborator interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./server
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	client := mocks.NewMockPlatformClient(ctrl)
//	client.EXPECT().ExchangeCode(gomock.Any(), "code").Return(result, nil)
package mocks
