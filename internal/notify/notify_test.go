package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"miniloan/internal/config"
	"miniloan/internal/event"

	"github.com/jordan-wright/email"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	rejects int
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects++
	a.requeue = requeue
	return nil
}

type MockLoanNotifier struct {
	mock.Mock
}

func (m *MockLoanNotifier) SendLoanNotification(ctx context.Context, topic event.Topic, ev event.LoanEvent) error {
	return m.Called(ctx, topic, ev).Error(0)
}

func delivery(t *testing.T, ack amqp.Acknowledger, key string, payload any) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, RoutingKey: key, Body: body}
}

func sampleEvent() event.LoanEvent {
	return event.LoanEvent{
		LoanID:           5,
		UserID:           7,
		Email:            "asha@example.com",
		Status:           "APPROVED",
		Amount:           decimal.RequireFromString("10000"),
		Emi:              decimal.RequireFromString("902.58"),
		TotalPayable:     decimal.RequireFromString("10830.96"),
		PaidAmount:       decimal.RequireFromString("902.58"),
		RemainingAmount:  decimal.RequireFromString("9928.38"),
		PaymentAmount:    decimal.RequireFromString("902.58"),
		PaymentReference: "ref-1",
		Timestamp:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleDeliveryAcksAfterSending(t *testing.T) {
	notifier := new(MockLoanNotifier)
	notifier.On("SendLoanNotification", mock.Anything, event.TopicPaymentReceived,
		mock.MatchedBy(func(ev event.LoanEvent) bool {
			return ev.LoanID == 5 && ev.PaymentReference == "ref-1" && ev.RemainingAmount.Equal(decimal.RequireFromString("9928.38"))
		})).Return(nil)

	ack := &fakeAck{}
	NewLoanEventHandler(notifier, logger).HandleDelivery(context.Background(),
		delivery(t, ack, string(event.TopicPaymentReceived), sampleEvent()))

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	notifier.AssertExpectations(t)
}

func TestHandleDeliveryFailures(t *testing.T) {
	t.Run("unknown routing key is rejected", func(t *testing.T) {
		notifier := new(MockLoanNotifier)
		ack := &fakeAck{}
		NewLoanEventHandler(notifier, logger).HandleDelivery(context.Background(),
			delivery(t, ack, "customer.created", sampleEvent()))

		assert.Equal(t, 1, ack.rejects)
		assert.False(t, ack.requeue)
		notifier.AssertNotCalled(t, "SendLoanNotification", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body is dropped", func(t *testing.T) {
		notifier := new(MockLoanNotifier)
		ack := &fakeAck{}
		d := amqp.Delivery{Acknowledger: ack, RoutingKey: string(event.TopicLoanApproved), Body: []byte("{")}
		NewLoanEventHandler(notifier, logger).HandleDelivery(context.Background(), d)

		assert.Equal(t, 1, ack.nacks)
		assert.False(t, ack.requeue)
	})

	t.Run("send failure is dropped without requeue", func(t *testing.T) {
		notifier := new(MockLoanNotifier)
		notifier.On("SendLoanNotification", mock.Anything, event.TopicLoanApproved, mock.Anything).
			Return(errors.New("smtp down"))
		ack := &fakeAck{}
		NewLoanEventHandler(notifier, logger).HandleDelivery(context.Background(),
			delivery(t, ack, string(event.TopicLoanApproved), sampleEvent()))

		assert.Equal(t, 1, ack.nacks)
		assert.Zero(t, ack.acks)
		assert.False(t, ack.requeue)
	})
}

func newTestMailer() (*SMTPMailer, *[]*email.Email) {
	sent := []*email.Email{}
	m := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: 1025, From: "no-reply@miniloan.local"}, logger)
	m.send = func(e *email.Email) error {
		sent = append(sent, e)
		return nil
	}
	return m, &sent
}

func TestSendPasswordReset(t *testing.T) {
	m, sent := newTestMailer()

	require.NoError(t, m.SendPasswordReset(context.Background(), "asha@example.com", "Asha", "Tmp12345abcd"))
	require.Len(t, *sent, 1)

	e := (*sent)[0]
	assert.Equal(t, []string{"asha@example.com"}, e.To)
	assert.Equal(t, "no-reply@miniloan.local", e.From)
	assert.Contains(t, string(e.Text), "Tmp12345abcd")
	assert.Contains(t, string(e.Text), "Dear Asha")
}

func TestSendLoanNotification(t *testing.T) {
	for _, topic := range event.LoanTopics {
		t.Run(string(topic), func(t *testing.T) {
			m, sent := newTestMailer()
			require.NoError(t, m.SendLoanNotification(context.Background(), topic, sampleEvent()))
			require.Len(t, *sent, 1)
			assert.Contains(t, (*sent)[0].Subject, "#5")
		})
	}

	t.Run("payment body carries balances", func(t *testing.T) {
		m, sent := newTestMailer()
		require.NoError(t, m.SendLoanNotification(context.Background(), event.TopicPaymentReceived, sampleEvent()))
		body := string((*sent)[0].Text)
		assert.True(t, strings.Contains(body, "9928.38") && strings.Contains(body, "ref-1"), body)
	})

	t.Run("missing recipient is skipped", func(t *testing.T) {
		m, sent := newTestMailer()
		ev := sampleEvent()
		ev.Email = ""
		require.NoError(t, m.SendLoanNotification(context.Background(), event.TopicLoanApproved, ev))
		assert.Empty(t, *sent)
	})

	t.Run("unknown topic", func(t *testing.T) {
		m, _ := newTestMailer()
		assert.Error(t, m.SendLoanNotification(context.Background(), event.TopicSessionStarted, sampleEvent()))
	})

	t.Run("transport error", func(t *testing.T) {
		m, _ := newTestMailer()
		m.send = func(*email.Email) error { return errors.New("dial tcp: refused") }
		assert.Error(t, m.SendLoanNotification(context.Background(), event.TopicLoanApproved, sampleEvent()))
	})
}

func TestConsumeLoop(t *testing.T) {
	deliveries := make(chan amqp.Delivery, 2)
	var handled []string
	handler := func(_ context.Context, d amqp.Delivery) { handled = append(handled, d.RoutingKey) }

	deliveries <- amqp.Delivery{RoutingKey: "loan.applied"}
	deliveries <- amqp.Delivery{RoutingKey: "loan.approved"}
	close(deliveries)

	consume(context.Background(), deliveries, handler, logger)
	assert.Equal(t, []string{"loan.applied", "loan.approved"}, handled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		consume(ctx, make(chan amqp.Delivery), handler, logger)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consume did not return after cancellation")
	}
}
