// Package mongostore wires rulestore.Store to MongoDB, for deployments that
// edit presets through an admin tool rather than redeploying a YAML file.
// Grounded on features/memory/mongo's thin delegating wrapper: a small
// exported Store forwarding to an internal collection handle, so tests can
// substitute a fake collection without standing up a real cluster.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/cadforge/codepilot/rulestore"
)

const (
	defaultCollection = "rule_sets"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements rulestore.Store by reading RuleSet documents keyed by
// preset_id from a Mongo collection.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New returns a Store backed by the provided Mongo client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collection)
	return &Store{coll: coll, timeout: timeout}, nil
}

// Get implements rulestore.Store.
func (s *Store) Get(ctx context.Context, presetID string) (*rulestore.RuleSet, error) {
	if presetID == "" {
		presetID = "default"
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var set rulestore.RuleSet
	err := s.coll.FindOne(ctx, bson.M{"preset_id": presetID}).Decode(&set)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %q", rulestore.ErrPresetNotFound, presetID)
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: get preset %q: %w", presetID, err)
	}
	return &set, nil
}
