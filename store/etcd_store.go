// EtcdStore backs the persistent store on etcd, keyed the same way
// registry.EtcdRegistry keys service instances: a flat prefix holding
// JSON-encoded values, one per group.
package store

import (
	"context"
	"encoding/json"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const groupPrefix = "/locator/groups/"

// EtcdStore implements Store on an etcd v3 client.
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore connects to the given etcd endpoints.
func NewEtcdStore(endpoints []string) (*EtcdStore, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdStore{client: c}, nil
}

// Find lists every group name currently stored under the groups prefix.
func (s *EtcdStore) Find() ([]string, error) {
	resp, err := s.client.Get(context.TODO(), groupPrefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		names = append(names, strings.TrimPrefix(string(kv.Key), groupPrefix))
	}
	return names, nil
}

// Read fetches the weighted service map for name.
func (s *EtcdStore) Read(name string) (map[string]uint32, error) {
	resp, err := s.client.Get(context.TODO(), groupPrefix+name)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	var weights map[string]uint32
	if err := json.Unmarshal(resp.Kvs[0].Value, &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

// Write persists weights for name.
func (s *EtcdStore) Write(name string, weights map[string]uint32) error {
	val, err := json.Marshal(weights)
	if err != nil {
		return err
	}
	_, err = s.client.Put(context.TODO(), groupPrefix+name, string(val))
	return err
}
