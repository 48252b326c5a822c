package db

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/swarm.forage/internal/metrics"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
)

// AttachAdminRoutes mounts the debug pages on mux: a tailsql console over
// the metrics database, a per-run dashboard and a backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	logf := monitoring.Component("admin")
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://forage.db", db.DB, &tailsql.DBOptions{
		Label: "Forage metrics",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("dashboard", "Charts for a run (?run=<id>, default latest)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("run")
		if runID == "" {
			latest, err := db.LatestRunID()
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, ErrNoRun) {
					status = http.StatusNotFound
				}
				http.Error(w, err.Error(), status)
				return
			}
			runID = latest
		}
		snaps, err := db.Snapshots(runID)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load snapshots: %v", err), http.StatusInternalServerError)
			return
		}
		if len(snaps) == 0 {
			http.Error(w, fmt.Sprintf("run %q has no snapshots", runID), http.StatusNotFound)
			return
		}
		var buf bytes.Buffer
		if err := metrics.RenderDashboard(&buf, "run "+runID, snaps); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("forage-backup-%d.db", time.Now().UnixNano()))
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				logf("failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
		w.Header().Set("Content-Type", "application/gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			logf("backup copy failed: %v", err)
		}
	}))
	return nil
}
