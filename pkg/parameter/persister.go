package parameter

import (
	"encoding/json"
	"os"
	"path/filepath"

	"emsgateway/pkg/storage"
	"github.com/pkg/errors"
)

// Store keeps the dictionary as one json document in the parameter store
// group.
type Store struct {
	client storage.Storage
	key    string
}

var _ Persister = (*Store)(nil)

func NewStore(client storage.Storage) *Store {
	return &Store{client: client, key: filepath.Join(storage.Parameters, dictionaryFile)}
}

func (s *Store) Load() (map[uint8]string, error) {
	obj, err := s.client.Get(s.key)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return map[uint8]string{}, nil
		}
		return nil, err
	}
	data, ok := obj.([]byte)
	if !ok {
		return nil, errors.Errorf("unexpected %T from parameter store", obj)
	}
	values := make(map[uint8]string)
	if err = json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "decode parameters")
	}
	return values, nil
}

func (s *Store) Save(values map[uint8]string) error {
	return s.client.Put(s.key, values)
}
