package statestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/paularlott/gisadmin/internal/config"
	"github.com/paularlott/gisadmin/internal/statestore/model"
)

func openDrivers(t *testing.T) map[string]Driver {
	t.Helper()

	drivers := map[string]Driver{}

	memory, err := Open(&config.StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	drivers["memory"] = memory

	badger, err := Open(&config.StoreConfig{BadgerDB: config.BadgerDBConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "state")}})
	if err != nil {
		t.Fatal(err)
	}
	drivers["badgerdb"] = badger

	t.Cleanup(func() {
		for _, d := range drivers {
			d.Close()
		}
	})

	return drivers
}

func TestServiceStates(t *testing.T) {
	for name, driver := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC()

			err := driver.SaveServiceStates("prod", []*model.ServiceState{
				{Site: "prod", Service: "Roads.MapServer", Result: "running", UpdatedAt: now},
				{Site: "prod", Service: "Old.MapServer", Result: "stopped", UpdatedAt: now},
			})
			if err != nil {
				t.Fatal(err)
			}
			driver.SaveServiceStates("test", []*model.ServiceState{{Site: "test", Service: "Roads.MapServer", Result: "error"}})

			previous, err := PreviousStates(driver, "prod")
			if err != nil {
				t.Fatal(err)
			}
			if len(previous) != 2 || previous["Roads.MapServer"] != "running" || previous["Old.MapServer"] != "stopped" {
				t.Errorf("previous = %v", previous)
			}

			// Saving again replaces the set for the site
			driver.SaveServiceStates("prod", []*model.ServiceState{{Site: "prod", Service: "Roads.MapServer", Result: "error"}})
			previous, _ = PreviousStates(driver, "prod")
			if len(previous) != 1 || previous["Roads.MapServer"] != "error" {
				t.Errorf("previous after replace = %v", previous)
			}

			other, _ := PreviousStates(driver, "test")
			if other["Roads.MapServer"] != "error" {
				t.Errorf("other site = %v", other)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	for name, driver := range openDrivers(t) {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
			for i, command := range []string{"services check", "users import", "content download"} {
				run := model.NewRun(command, "prod")
				run.StartedAt = start.Add(time.Duration(i) * time.Minute)
				run.Finish("ok", nil)
				if err := driver.SaveRun(run); err != nil {
					t.Fatal(err)
				}
			}

			runs, err := driver.GetRuns(2)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 2 {
				t.Fatalf("runs = %d, want 2", len(runs))
			}
			if runs[0].Command != "content download" || runs[1].Command != "users import" {
				t.Errorf("runs = %s, %s", runs[0].Command, runs[1].Command)
			}
			if !runs[0].Success || runs[0].Id == "" {
				t.Errorf("run = %+v", runs[0])
			}
		})
	}
}

func TestPreviousStatesEmpty(t *testing.T) {
	driver, err := Open(&config.StoreConfig{})
	if err != nil {
		t.Fatal(err)
	}
	previous, err := PreviousStates(driver, "prod")
	if err != nil || len(previous) != 0 {
		t.Errorf("previous = %v, err = %v", previous, err)
	}
}
