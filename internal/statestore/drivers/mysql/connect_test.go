package driver_mysql

import (
	"strings"
	"testing"

	"github.com/paularlott/gisadmin/internal/config"
)

func TestDSN(t *testing.T) {
	db := New(config.MySQLConfig{Host: "db.example.com", Port: 3306, User: "gis", Password: "p@ss", Database: "gisadmin"})

	dsn := db.dsn()
	for _, want := range []string{"gis:p@ss@tcp(db.example.com:3306)/gisadmin", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}
