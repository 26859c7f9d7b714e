package storage

import "context"

type IService interface {
	// StoreFile uploads a local file and returns its object URL
	StoreFile(ctx context.Context, fileName string) (string, error)
}
