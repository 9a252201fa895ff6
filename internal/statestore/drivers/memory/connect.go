package driver_memory

import (
	"sort"
	"sync"

	"github.com/paularlott/gisadmin/internal/statestore/model"
)

type MemoryDbDriver struct {
	mutex  sync.RWMutex
	states map[string]map[string]*model.ServiceState
	runs   map[string]*model.Run
}

func New() *MemoryDbDriver {
	return &MemoryDbDriver{}
}

func (db *MemoryDbDriver) Connect() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.states = make(map[string]map[string]*model.ServiceState)
	db.runs = make(map[string]*model.Run)
	return nil
}

func (db *MemoryDbDriver) Close() error {
	return nil
}

func (db *MemoryDbDriver) SaveServiceStates(site string, states []*model.ServiceState) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	siteStates := make(map[string]*model.ServiceState, len(states))
	for _, s := range states {
		c := *s
		siteStates[s.Service] = &c
	}
	db.states[site] = siteStates
	return nil
}

func (db *MemoryDbDriver) GetServiceStates(site string) ([]*model.ServiceState, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var states []*model.ServiceState
	for _, s := range db.states[site] {
		c := *s
		states = append(states, &c)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].Service < states[j].Service })
	return states, nil
}

func (db *MemoryDbDriver) SaveRun(run *model.Run) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	c := *run
	db.runs[run.Id] = &c
	return nil
}

func (db *MemoryDbDriver) GetRuns(limit int) ([]*model.Run, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	runs := make([]*model.Run, 0, len(db.runs))
	for _, r := range db.runs {
		c := *r
		runs = append(runs, &c)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
