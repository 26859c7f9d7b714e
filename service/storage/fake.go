package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

type Fake struct {
	mu     sync.Mutex
	Stored []string
}

// NewFake records the uploaded file names without touching the network.
func NewFake() *Fake {
	return &Fake{}
}

func (svc *Fake) StoreFile(_ context.Context, fileName string) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.Stored = append(svc.Stored, fileName)
	return fmt.Sprintf("fake://%s", filepath.Base(fileName)), nil
}

func (svc *Fake) Files() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]string(nil), svc.Stored...)
}
