// Package all registers every store backend. Blank-import it from a main
// package to make them selectable by kind.
package all

import (
	_ "github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store/mssql"
	_ "github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store/postgres"
	_ "github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store/sqlite"
)
