//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/railbook/service-booking/internal/adapter"
	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/domain/booking"
	"github.com/railbook/service-booking/internal/domain/cancellation"
	"github.com/railbook/service-booking/internal/domain/loyalty"
	bookingEvents "github.com/railbook/service-booking/internal/events"
	"github.com/railbook/service-booking/internal/lock"
	"github.com/railbook/service-booking/internal/notify"
	"github.com/railbook/service-booking/internal/platform/kafka"
	"github.com/railbook/service-booking/internal/repository"
	"github.com/railbook/service-booking/internal/saga"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Orchestrator    *application.PaymentOrchestrator
	Loyalty         *application.LoyaltyService
	Discounts       *application.DiscountService
	Consumer        *bookingEvents.ScheduleEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable TimeZone=UTC", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
			TranslateError: true,
		})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, repository.Migrate(db))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		bookingEvents.TopicBookingEvents,
		bookingEvents.TopicPaymentEvents,
		bookingEvents.TopicScheduleEvents,
		bookingEvents.TopicNotifications,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the booking service the way the server does,
// with a Kafka notifier and an in-process lock.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewBookingRepository(db)
	scheduleRepo := repository.NewGormScheduleRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	discountRepo := repository.NewGormDiscountRepository(db)
	loyaltyRepo := repository.NewGormLoyaltyRepository(db)
	policyRepo := repository.NewGormPolicyRepository(db)

	producer := kafka.NewProducer(brokers, logger)
	publisher := bookingEvents.NewPublisher(producer, logger)
	notifier := notify.NewKafkaNotifier(publisher)
	locker := lock.NewLocalLocker()

	rates := loyalty.DefaultRates()
	loyaltySvc := application.NewLoyaltyService(loyaltyRepo, rates, logger)
	discountSvc := application.NewDiscountService(discountRepo, nil, logger)
	policySvc := application.NewPolicyService(policyRepo, cancellation.DefaultPolicy(), logger)

	gateway := adapter.NewMockGateway(logger)
	adapters := adapter.NewRegistry(
		adapter.NewCardAdapter(gateway, nil, logger),
		adapter.NewCashAdapter(logger),
		adapter.NewLoyaltyWalletAdapter(loyaltySvc, rates, logger),
	)

	sagaSvc := saga.NewPaymentSagaService(discountSvc, paymentRepo, bookingRepo, loyaltySvc, logger)
	orchestrator := application.NewPaymentOrchestrator(bookingRepo, discountSvc, adapters, sagaSvc,
		locker, 5*time.Second, publisher, notifier, logger)
	bookingSvc := application.NewBookingService(bookingRepo, scheduleRepo, paymentRepo, policySvc,
		adapters, locker, 5*time.Second, publisher, notifier, time.UTC, nil, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewScheduleEventConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Bookings:        bookingSvc,
		Orchestrator:    orchestrator,
		Loyalty:         loyaltySvc,
		Discounts:       discountSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedSchedule inserts a schedule departing at departsAt (UTC, minute precision).
func seedSchedule(t *testing.T, db *gorm.DB, id int64, departsAt time.Time) {
	t.Helper()
	departsAt = departsAt.UTC()
	y, m, d := departsAt.Date()
	model := repository.ScheduleModel{
		ID:            id,
		RouteID:       1,
		DepartureDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		DepartureTime: departsAt.Format("15:04"),
		ArrivalTime:   departsAt.Add(3 * time.Hour).Format("15:04"),
		Capacity:      200,
		PriceCents:    5000,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed schedule")
}

// seedPendingBooking stores a PENDING booking for two passengers at 5000 cents a seat.
func seedPendingBooking(t *testing.T, db *gorm.DB, userID uuid.UUID, scheduleID int64) *booking.Booking {
	t.Helper()
	b, err := booking.NewBooking(userID, scheduleID, []booking.Passenger{
		{Name: "Sara Malik", Age: 34, SeatNumber: "4A"},
		{Name: "Omar Malik", Age: 9, SeatNumber: "4B"},
	}, 5000, "USD")
	require.NoError(t, err)
	require.NoError(t, repository.NewBookingRepository(db).Save(context.Background(), b), "failed to seed booking")
	return b
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeEvent reads from a Kafka topic until match accepts an event.
func consumeEvent(t *testing.T, brokers []string, topic string, timeout time.Duration, match func(kafka.CloudEvent) bool) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for a matching event on topic %q", topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if match(ce) {
			return ce
		}
	}
}

// ofType matches events by CloudEvent type.
func ofType(eventType string) func(kafka.CloudEvent) bool {
	return func(ce kafka.CloudEvent) bool { return ce.Type == eventType }
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
