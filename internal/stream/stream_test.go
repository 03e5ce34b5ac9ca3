package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	subject string
	payload []byte
}

type recordingPublisher struct {
	messages []published
	err      error
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, published{subject: subject, payload: payload})
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type fakeConn struct {
	subjects []string
	flushes  int
	closed   bool
}

func (f *fakeConn) Publish(subject string, _ []byte) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error {
	f.flushes++
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

type fakeQueues struct {
	ensured map[string]int
	puts    map[string][]string
	failPut bool
}

func (f *fakeQueues) Ensure(name string) error {
	f.ensured[name]++
	return nil
}

func (f *fakeQueues) Put(name, text string) error {
	if f.failPut {
		return errors.New("503")
	}
	f.puts[name] = append(f.puts[name], text)
	return nil
}

func TestEmitterPredictionEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEmitter(pub, quietLogger())
	rec := models.PredictionRecord{ID: "p1", Value: 0.42, ProcessingTime: 15 * time.Millisecond, PredictedAt: time.Now().UTC()}

	if err := e.PredictionMade(context.Background(), rec); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(pub.messages) != 1 || pub.messages[0].subject != SubjectPredictions {
		t.Fatalf("unexpected messages %+v", pub.messages)
	}
	var ev Event
	if err := json.Unmarshal(pub.messages[0].payload, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	var payload predictionPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ev.Kind != "prediction" || ev.ID != "p1" || payload.Value != 0.42 || payload.ProcessingTimeMs != 15 {
		t.Fatalf("unexpected event %+v payload %+v", ev, payload)
	}
}

func TestEmitterDeliverAlerts(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEmitter(pub, quietLogger())
	alerts := []models.Alert{{ID: "a1", Type: models.AlertPerformance}, {ID: "a2", Type: models.AlertDataQuality}}
	if err := e.Deliver(context.Background(), alerts); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(pub.messages) != 2 || pub.messages[1].subject != SubjectAlerts {
		t.Fatalf("unexpected messages %+v", pub.messages)
	}

	failing := NewEmitter(&recordingPublisher{err: errors.New("down")}, quietLogger())
	if err := failing.Deliver(context.Background(), alerts); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestNATSPublisherPrefixesSubject(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "engage", quietLogger())
	if err := p.Publish(context.Background(), SubjectAlerts, []byte("{}")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(conn.subjects) != 1 || conn.subjects[0] != "engage.alerts" || conn.flushes != 1 {
		t.Fatalf("unexpected conn state %+v", conn)
	}
	_ = p.Close()
	if !conn.closed {
		t.Fatalf("expected connection to be closed")
	}
}

func TestAzureQueuePublisher(t *testing.T) {
	queues := &fakeQueues{ensured: map[string]int{}, puts: map[string][]string{}}
	p := newAzureQueuePublisher(queues, "Engage", quietLogger())

	for i := 0; i < 2; i++ {
		if err := p.Publish(context.Background(), SubjectPredictions, []byte(`{"v":1}`)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if queues.ensured["engage-predictions"] != 1 {
		t.Fatalf("expected queue to be ensured once, got %v", queues.ensured)
	}
	msgs := queues.puts["engage-predictions"]
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	decoded, err := base64.StdEncoding.DecodeString(msgs[0])
	if err != nil || string(decoded) != `{"v":1}` {
		t.Fatalf("unexpected message body %q (%v)", decoded, err)
	}

	queues.failPut = true
	if err := p.Publish(context.Background(), SubjectPredictions, nil); err == nil {
		t.Fatalf("expected put failure to surface")
	}
}

func TestQueueName(t *testing.T) {
	cases := map[[2]string]string{
		{"engage", "alerts"}:           "engage-alerts",
		{"Engage_Prod", "predictions"}: "engage-prod-predictions",
		{"", "a"}:                      "aqq",
		{"--x--", "..y.."}:             "x-y",
	}
	for in, want := range cases {
		if got := QueueName(in[0], in[1]); got != want {
			t.Fatalf("QueueName(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestNewSelectsBackend(t *testing.T) {
	pub, err := New(Config{Backend: "none"}, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := pub.(NoopPublisher); !ok {
		t.Fatalf("expected noop publisher, got %T", pub)
	}
	if _, err := New(Config{Backend: "kafka"}, quietLogger()); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
