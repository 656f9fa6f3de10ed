package jobs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestAddRejectsBadSpec(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := New(log, time.Second)

	err := s.Add(Task{Name: "broken", Spec: "every now and then", Run: func(context.Context) (int64, error) { return 0, nil }})
	if err == nil {
		t.Fatal("expected an invalid spec to be rejected")
	}
}

func TestAddSkipsEmptySpec(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(log, time.Second)

	if err := s.Add(Task{Name: "disabled"}); err != nil {
		t.Fatal(err)
	}
	if len(s.cron.Entries()) != 0 {
		t.Fatal("expected no scheduled entry")
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Fatal("expected a warning about the disabled job")
	}
}

func TestRunLogsOutcome(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(log, time.Second)

	var deadline bool
	s.run(Task{Name: "expire", Run: func(ctx context.Context) (int64, error) {
		_, deadline = ctx.Deadline()
		return 3, nil
	}})
	if !deadline {
		t.Fatal("expected the job context to carry the timeout")
	}

	e := hook.LastEntry()
	if e.Message != "job completed" || e.Data["rows"] != int64(3) || e.Data["job"] != "expire" {
		t.Fatalf("unexpected entry %q %v", e.Message, e.Data)
	}

	s.run(Task{Name: "purge", Run: func(context.Context) (int64, error) {
		return 0, errors.New("connection reset")
	}})
	if e := hook.LastEntry(); e.Level != logrus.ErrorLevel {
		t.Fatalf("expected an error entry, got %s", e.Level)
	}
}

func TestScheduledTaskRuns(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(log, time.Second)

	ran := make(chan struct{}, 1)
	err := s.Add(Task{Name: "tick", Spec: "@every 1s", Run: func(context.Context) (int64, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestFields(t *testing.T) {
	got := fields([]interface{}{"entry", 1, "next"})
	want := logrus.Fields{"entry": 1, "next": "MISSING"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}
