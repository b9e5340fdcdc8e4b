package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/cleanup"
	"asset-preview/internal/metadata"
	"asset-preview/internal/scene"
)

func basicRecord(path, fp string) *metadata.Record {
	return &metadata.Record{
		Tier:        metadata.TierBasic,
		AssetPath:   path,
		Fingerprint: fp,
		Basic: metadata.Basic{
			Size:      42,
			ModTime:   time.Unix(1700000000, 0).UTC(),
			Type:      assets.TypeOBJ,
			Extension: ".obj",
		},
		ExtractedAt: time.Unix(1700000100, 0).UTC(),
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetMetadata(ctx, "/lib/a.obj"); !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	rec := basicRecord("/lib/a.obj", "1")
	rec.Tier = metadata.TierFull
	rec.Full = &metadata.Full{
		Meshes:   2,
		Textures: []string{"a.png"},
		Cameras:  []metadata.CameraInfo{{Name: "cam", FocalLength: 35}},
	}
	if err := db.PutMetadata(ctx, rec); err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}

	got, err := db.GetMetadata(ctx, "/lib/a.obj")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got.Tier != metadata.TierFull || got.Full == nil || got.Full.Meshes != 2 || got.Full.Cameras[0].Name != "cam" {
		t.Errorf("got %+v", got)
	}
	if !got.Basic.ModTime.Equal(rec.Basic.ModTime) {
		t.Errorf("mod time = %v", got.Basic.ModTime)
	}
}

func TestSaveThroughDatabaseKeepsFull(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	full := basicRecord("/lib/a.obj", "1")
	full.Tier = metadata.TierFull
	full.Full = &metadata.Full{Nodes: 3}
	if _, err := metadata.Save(ctx, db, full); err != nil {
		t.Fatal(err)
	}
	if _, err := metadata.Save(ctx, db, basicRecord("/lib/a.obj", "1")); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMetadata(ctx, "/lib/a.obj")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != metadata.TierFull || got.Full.Nodes != 3 {
		t.Errorf("downgraded: %+v", got)
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Full != 1 || counts.Basic != 0 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestDeleteAndListMetadata(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for _, p := range []string{"/lib/b.obj", "/lib/a.obj", "/lib/c.ma"} {
		if err := db.PutMetadata(ctx, basicRecord(p, "1")); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.DeleteMetadata(ctx, "/lib/b.obj"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteMetadata(ctx, "/lib/unknown.obj"); err != nil {
		t.Errorf("deleting unknown: %v", err)
	}

	paths, err := db.ListAssetPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != "/lib/a.obj" || paths[1] != "/lib/c.ma" {
		t.Errorf("paths = %v", paths)
	}

	counts, err := db.Counts(ctx)
	if err != nil || counts.Basic != 2 {
		t.Errorf("counts = %+v, %v", counts, err)
	}
}

func sampleReport(ns string, state cleanup.State) *cleanup.Report {
	return &cleanup.Report{
		Namespace: ns,
		Phases: []cleanup.PhaseEntry{
			{Phase: cleanup.PhaseUnlocking, Nodes: 1},
			{Phase: cleanup.PhaseDeleting, Nodes: 3, Err: "node locked"},
			{Phase: cleanup.PhaseAggressiveDelete, Nodes: 3},
		},
		Unlocked: []scene.NodeID{scene.NodeID(ns + ":proxy")},
		Disconnected: []scene.Connection{{
			From: scene.Plug{Node: scene.NodeID(ns + ":proxy"), Attr: "message"},
			To:   scene.Plug{Node: "hardwareRenderingGlobals", Attr: "inputs"},
		}},
		Deleted:         3,
		Escalated:       true,
		NamespaceAbsent: state == cleanup.StateDone,
		State:           state,
		Log:             []string{"unlocked node " + ns + ":proxy"},
		FinishedAt:      time.Now(),
	}
}

func TestReports(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if r, err := db.LatestReport(ctx, "/lib/a.obj"); r != nil || err != nil {
		t.Fatalf("LatestReport on empty = %v, %v", r, err)
	}

	if err := db.SaveReport(ctx, "/lib/a.obj", sampleReport("preview_a_1", cleanup.StateFailed)); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveReport(ctx, "/lib/a.obj", sampleReport("preview_a_2", cleanup.StateDone)); err != nil {
		t.Fatal(err)
	}

	latest, err := db.LatestReport(ctx, "/lib/a.obj")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Namespace != "preview_a_2" || latest.State != cleanup.StateDone || !latest.Escalated {
		t.Errorf("latest = %+v", latest)
	}
	if len(latest.Disconnected) != 1 || latest.Disconnected[0].To.Node != "hardwareRenderingGlobals" {
		t.Errorf("disconnected = %+v", latest.Disconnected)
	}
	if len(latest.Phases) != 3 || latest.Phases[1].Err != "node locked" {
		t.Errorf("phases = %+v", latest.Phases)
	}

	all, err := db.ListReports(ctx, "/lib/a.obj", 0)
	if err != nil || len(all) != 2 || all[1].Namespace != "preview_a_1" {
		t.Errorf("ListReports = %d reports, %v", len(all), err)
	}

	if err := db.DeleteReports(ctx, "/lib/a.obj"); err != nil {
		t.Fatal(err)
	}
	if r, _ := db.LatestReport(ctx, "/lib/a.obj"); r != nil {
		t.Error("report survived delete")
	}
}

func TestReportHistoryTrimmed(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < DefaultReportHistory+5; i++ {
		if err := db.SaveReport(ctx, "/lib/a.obj", sampleReport("ns", cleanup.StateDone)); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.SaveReport(ctx, "/lib/b.obj", sampleReport("ns", cleanup.StateDone)); err != nil {
		t.Fatal(err)
	}

	counts, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Reports != DefaultReportHistory+1 {
		t.Errorf("reports = %d", counts.Reports)
	}
}
