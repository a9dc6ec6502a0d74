package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "aktis-crashsync-jira/internal/common"
	. "aktis-crashsync-jira/internal/interfaces"

	"aktis-crashsync-jira/internal/models"

	bolt "go.etcd.io/bbolt"
)

const (
	correlationsBucket = "correlations"
	deliveriesBucket   = "deliveries"
)

type storage struct {
	db     *bolt.DB
	config *StorageConfig
}

// NewStorage opens the correlation/delivery store. This is audit state kept
// for the operator surface; the sync core never consults it.
func NewStorage(config *StorageConfig) (Storage, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if config.BackupDir != "" {
		if err := os.MkdirAll(config.BackupDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(correlationsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(deliveriesBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	s := &storage{
		db:     db,
		config: config,
	}

	if config.RetentionDays > 0 {
		if err := s.pruneDeliveries(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prune old deliveries: %w", err)
		}
	}

	return s, nil
}

func (s *storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *storage) SaveCorrelation(record *models.CorrelationRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(correlationsBucket))

		if record.CreatedAt == "" {
			record.CreatedAt = time.Now().Format(time.RFC3339)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal correlation %s: %w", record.IssueKey, err)
		}

		key := []byte(fmt.Sprintf("%s:%s", record.AppID, record.IssueKey))
		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("failed to save correlation %s: %w", record.IssueKey, err)
		}
		return nil
	})
}

func (s *storage) LoadCorrelations(appID string) ([]*models.CorrelationRecord, error) {
	var records []*models.CorrelationRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(correlationsBucket))
		prefix := []byte(appID + ":")

		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var record models.CorrelationRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, &record)
		}

		return nil
	})

	return records, err
}

func (s *storage) RecordDelivery(record *models.DeliveryRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveriesBucket))

		now := time.Now()
		if record.Timestamp == "" {
			record.Timestamp = now.Format(time.RFC3339)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal delivery record: %w", err)
		}

		// Nanosecond suffix keeps concurrent deliveries for one app distinct.
		key := []byte(fmt.Sprintf("%s:%d", record.AppID, now.UnixNano()))
		return bucket.Put(key, data)
	})
}

func (s *storage) DeliveryStats() (map[string]*models.AppDeliveryStats, error) {
	stats := make(map[string]*models.AppDeliveryStats)

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveriesBucket))

		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record models.DeliveryRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}

			app, ok := stats[record.AppID]
			if !ok {
				app = &models.AppDeliveryStats{AppID: record.AppID}
				stats[record.AppID] = app
			}

			if record.OK {
				app.Delivered++
			} else {
				app.Failed++
			}
			// Keys sort by insertion time, so the last record wins.
			app.LastOperation = record.Operation
			app.LastDelivery = record.Timestamp
		}

		return nil
	})

	return stats, err
}

// pruneDeliveries drops delivery records older than the retention window.
func (s *storage) pruneDeliveries() error {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveriesBucket))

		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record models.DeliveryRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			ts, err := time.Parse(time.RFC3339, record.Timestamp)
			if err != nil {
				continue
			}
			if ts.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}

		return nil
	})
}
