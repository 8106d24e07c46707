// Package storage provides connection to the object storage for source and result images
package storage

import (
	"log"
	"time"

	"github.com/UnendingLoop/BGRemover/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

// NewImgStorage blocks until the storage is reachable, retrying every delay.
func NewImgStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioImageStorage {
	for {
		log.Println("Connecting to IMG-storage...")
		client, err := miniostorage.NewMinioClient(miniostorage.OptionsFromConfig(cfg))
		if err != nil {
			log.Printf("Failed to init connection to IMG-storage: %v\nNext retry in %v...", err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected IMG-storage!")
		return client
	}
}
