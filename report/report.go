// Package report stores DTM test results in a JSON file.
package report

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/rigado/dtm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fileStore struct {
	filename string
	lock     sync.RWMutex
}

// New returns a store backed by filename. The file is created on the first
// Store.
func New(filename string) dtm.ResultStore {
	return &fileStore{filename: filename}
}

func (fs *fileStore) Store(r dtm.Result) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	results, err := fs.loadExisting()
	if err != nil {
		return err
	}

	results[r.DUT] = append(results[r.DUT], r)
	return fs.storeResults(results)
}

func (fs *fileStore) Load(dut string) ([]dtm.Result, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	results, err := fs.loadExisting()
	if err != nil {
		return nil, err
	}

	r, ok := results[dut]
	if !ok {
		return nil, fmt.Errorf("no results for %q in %s", dut, fs.filename)
	}
	return r, nil
}

func (fs *fileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	err := os.Remove(fs.filename)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DUTs lists the DUT names with results in s, which must come from New.
func DUTs(s dtm.ResultStore) ([]string, error) {
	fs, ok := s.(*fileStore)
	if !ok {
		return nil, errors.New("not a report file store")
	}

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	results, err := fs.loadExisting()
	if err != nil {
		return nil, err
	}

	var names []string
	for n := range results {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (fs *fileStore) loadExisting() (map[string][]dtm.Result, error) {
	_, err := os.Stat(fs.filename)
	if os.IsNotExist(err) {
		return map[string][]dtm.Result{}, nil
	}

	in, err := ioutil.ReadFile(fs.filename)
	if err != nil {
		return nil, errors.Wrap(err, "can't read results")
	}

	var results map[string][]dtm.Result
	if err := json.Unmarshal(in, &results); err != nil {
		return nil, errors.Wrapf(err, "can't parse %s", fs.filename)
	}
	if results == nil {
		results = map[string][]dtm.Result{}
	}
	return results, nil
}

func (fs *fileStore) storeResults(results map[string][]dtm.Result) error {
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(fs.filename, out, 0644)
}
