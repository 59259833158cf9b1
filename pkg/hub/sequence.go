package hub

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// RunNameSequence hands out run names of the form <workflow>-<n>,
// counting per project and workflow. Counters survive restarts.
type RunNameSequence struct {
	mu sync.Mutex
	db *leveldb.DB
}

func OpenRunNameSequence(path string) (*RunNameSequence, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &RunNameSequence{db: db}, nil
}

func (s *RunNameSequence) Next(project, workflow string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(project + "/" + workflow)
	next := 1
	raw, err := s.db.Get(key, nil)
	if err == nil {
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			return "", err
		}
		next = n + 1
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return "", err
	}
	if err := s.db.Put(key, []byte(strconv.Itoa(next)), nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", workflow, next), nil
}

func (s *RunNameSequence) Close() error {
	return s.db.Close()
}
