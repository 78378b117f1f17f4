package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-cooler-backend/internal/domain"
)

func TestCoolerStatus_IncludesOpenComplaint(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	mustCooler(t, db, "cooler-1")
	complaint := fileComplaint(t, db, "cooler-1")

	svc := &StatusService{DB: db}
	status, err := svc.CoolerStatus(ctx, "cooler-1")
	if err != nil {
		t.Fatalf("CoolerStatus: %v", err)
	}
	if status.State != domain.StateReported {
		t.Fatalf("expected reported, got %s", status.State)
	}
	if status.OpenComplaint == nil || status.OpenComplaint.ID != complaint.ID {
		t.Fatalf("open complaint summary missing: %+v", status)
	}
	if status.OpenComplaint.Description != "water tastes odd" {
		t.Fatalf("summary description mismatch: %+v", status.OpenComplaint)
	}
}

func TestCoolerStatus_CleanCoolerHasNoComplaint(t *testing.T) {
	db := newServiceDB(t)
	mustCooler(t, db, "cooler-1")

	svc := &StatusService{DB: db}
	status, err := svc.CoolerStatus(context.Background(), "cooler-1")
	if err != nil {
		t.Fatalf("CoolerStatus: %v", err)
	}
	if status.State != domain.StateClean || status.OpenComplaint != nil {
		t.Fatalf("clean cooler must have no complaint slice: %+v", status)
	}
}

func TestCoolerStatus_NotFound(t *testing.T) {
	db := newServiceDB(t)
	svc := &StatusService{DB: db}
	if _, err := svc.CoolerStatus(context.Background(), "ghost"); !errors.Is(err, ErrCoolerNotFound) {
		t.Fatalf("expected ErrCoolerNotFound, got %v", err)
	}
}

func TestListCoolers_OrderedByID(t *testing.T) {
	db := newServiceDB(t)
	mustCooler(t, db, "cooler-2")
	mustCooler(t, db, "cooler-1")

	svc := &StatusService{DB: db}
	list, err := svc.ListCoolers(context.Background())
	if err != nil {
		t.Fatalf("ListCoolers: %v", err)
	}
	if len(list) != 2 || list[0].ID != "cooler-1" || list[1].ID != "cooler-2" {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestTechnicianQueue_OnlyActionableStates(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	mustCooler(t, db, "cooler-1") // stays clean
	mustCooler(t, db, "cooler-2") // reported
	mustCooler(t, db, "cooler-3") // evidence_submitted, judgment in flight

	fileComplaint(t, db, "cooler-2")
	c3 := fileComplaint(t, db, "cooler-3")
	lifecycle := &LifecycleService{DB: db, Verifier: &stubJudge{}}
	if _, _, err := lifecycle.SubmitEvidence(ctx, "cooler-3", &c3.ID, "b.jpg", "a.jpg", nil, "tech7"); err != nil {
		t.Fatalf("SubmitEvidence: %v", err)
	}

	svc := &StatusService{DB: db}
	queue, total, err := svc.TechnicianQueue(ctx, 1, 20)
	if err != nil {
		t.Fatalf("TechnicianQueue: %v", err)
	}
	if total != 1 || len(queue) != 1 {
		t.Fatalf("expected exactly the reported cooler, got total=%d queue=%+v", total, queue)
	}
	if queue[0].ID != "cooler-2" || queue[0].OpenComplaint == nil {
		t.Fatalf("queue entry must carry the open complaint: %+v", queue[0])
	}
}

func TestTechnicianQueue_Pagination(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	for _, id := range []string{"cooler-1", "cooler-2", "cooler-3"} {
		mustCooler(t, db, id)
		fileComplaint(t, db, id)
	}

	svc := &StatusService{DB: db}
	page1, total, err := svc.TechnicianQueue(ctx, 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 3 || len(page1) != 2 {
		t.Fatalf("expected total=3 page of 2, got total=%d len=%d", total, len(page1))
	}
	page2, _, err := svc.TechnicianQueue(ctx, 2, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("expected 1 leftover, got %d", len(page2))
	}

	// Out-of-range inputs are normalized, not rejected.
	norm, _, err := svc.TechnicianQueue(ctx, 0, 0)
	if err != nil {
		t.Fatalf("normalized page: %v", err)
	}
	if len(norm) != 3 {
		t.Fatalf("page 0 size 0 must mean first default page, got %d", len(norm))
	}
}

func TestTechnicianQueue_Empty(t *testing.T) {
	db := newServiceDB(t)
	mustCooler(t, db, "cooler-1")

	svc := &StatusService{DB: db}
	queue, total, err := svc.TechnicianQueue(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("TechnicianQueue: %v", err)
	}
	if total != 0 || len(queue) != 0 {
		t.Fatalf("expected empty queue, got total=%d queue=%+v", total, queue)
	}
}

func TestHistory_ReplaysTransitions(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	mustCooler(t, db, "cooler-1")
	fileComplaint(t, db, "cooler-1")

	svc := &StatusService{DB: db}
	entries, err := svc.History(ctx, "cooler-1", 100)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected audit entries for the filing transition")
	}
	for _, e := range entries {
		if e.EntityType != "cooler" || e.EntityID != "cooler-1" {
			t.Fatalf("history leaked a foreign entity: %+v", e)
		}
	}

	if _, err := svc.History(ctx, "ghost", 100); !errors.Is(err, ErrCoolerNotFound) {
		t.Fatalf("expected ErrCoolerNotFound, got %v", err)
	}
}
