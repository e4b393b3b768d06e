package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/service/mocks"
)

type alertTestDeps struct {
	repo  *mocks.MockAlertRepository
	push  *mocks.MockNotifier
	inApp *mocks.MockNotifier
}

func newTestAlertService(t *testing.T) (*alertService, alertTestDeps) {
	ctrl := gomock.NewController(t)
	deps := alertTestDeps{
		repo:  mocks.NewMockAlertRepository(ctrl),
		push:  mocks.NewMockNotifier(ctrl),
		inApp: mocks.NewMockNotifier(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		AlertAreaRadiusMeters: 1500,
		AlertRules:            config.DefaultAlertRules(),
	}
	notifiers := map[models.Channel]Notifier{
		models.ChannelPush:  deps.push,
		models.ChannelInApp: deps.inApp,
	}

	service := NewAlertService(deps.repo, notifiers, logger, cfg).(*alertService)
	service.now = func() time.Time { return fixedNow }
	return service, deps
}

func channelsOf(alerts []*models.Alert) []models.Channel {
	channels := make([]models.Channel, len(alerts))
	for i, a := range alerts {
		channels[i] = a.Channel
	}
	return channels
}

func TestDispatch_CreatedLowSeverity(t *testing.T) {
	// Подготовка
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	incident := storedIncident(models.StatusReported)
	incident.Severity = models.SeverityLow

	// Ожидания: только in_app для полиции
	deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	deps.inApp.EXPECT().Notify(ctx, gomock.Any()).Return(nil).Times(1)
	deps.push.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	alerts, err := service.Dispatch(ctx, incident, models.TriggerCreated)

	// Проверки
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, models.ChannelInApp, alert.Channel)
	assert.Equal(t, models.AudiencePolice, alert.Audience)
	require.NotNil(t, alert.IncidentID)
	assert.Equal(t, incident.ID, *alert.IncidentID)
	assert.Equal(t, fixedNow, alert.SentAt)
	assert.Equal(t, "New congestion reported (low)", alert.Title)
	assert.Contains(t, alert.Message, "Kigali Heights")
	assert.Nil(t, alert.Area)
}

func TestDispatch_CreatedHighSeverity(t *testing.T) {
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	incident := storedIncident(models.StatusReported)

	deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(2)
	deps.inApp.EXPECT().Notify(ctx, gomock.Any()).Return(nil).Times(1)
	deps.push.EXPECT().Notify(ctx, gomock.Any()).Return(nil).Times(1)

	alerts, err := service.Dispatch(ctx, incident, models.TriggerCreated)

	require.NoError(t, err)
	assert.Equal(t, []models.Channel{models.ChannelInApp, models.ChannelPush}, channelsOf(alerts))
}

func TestDispatch_VerifiedSpecificArea(t *testing.T) {
	// Подготовка
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	incident := storedIncident(models.StatusVerified)

	// Ожидания: push для всех и sms по району; у sms нет Notifier
	deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(2)
	deps.push.EXPECT().Notify(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	alerts, err := service.Dispatch(ctx, incident, models.TriggerVerified)

	// Проверки
	require.NoError(t, err)
	require.Equal(t, []models.Channel{models.ChannelPush, models.ChannelSMS}, channelsOf(alerts))
	sms := alerts[1]
	assert.Equal(t, models.AudienceSpecificArea, sms.Audience)
	require.NotNil(t, sms.Area)
	assert.Equal(t, incident.Location, *sms.Area)
	assert.Equal(t, 1500, sms.AreaRadiusMeters)
}

func TestDispatch_NoMatchingRules(t *testing.T) {
	service, deps := newTestAlertService(t)
	incident := storedIncident(models.StatusInProgress)

	deps.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	alerts, err := service.Dispatch(context.Background(), incident, models.TriggerInProgress)

	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDispatch_NotifierFailureKeepsAlert(t *testing.T) {
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	incident := storedIncident(models.StatusReported)
	incident.Severity = models.SeverityMedium

	deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(1)
	deps.inApp.EXPECT().Notify(ctx, gomock.Any()).Return(errors.New("hub closed")).Times(1)

	alerts, err := service.Dispatch(ctx, incident, models.TriggerCreated)

	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestDispatch_RepositoryFailure(t *testing.T) {
	// Подготовка
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	incident := storedIncident(models.StatusReported)

	// Ожидания: первое сохранение падает, второе проходит
	gomock.InOrder(
		deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(errors.New("connection reset")),
		deps.repo.EXPECT().Create(ctx, gomock.Any()).Return(nil),
	)
	deps.inApp.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)
	deps.push.EXPECT().Notify(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	alerts, err := service.Dispatch(ctx, incident, models.TriggerCreated)

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []models.Channel{models.ChannelPush}, channelsOf(alerts))
}

func TestRecordDelivery(t *testing.T) {
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	alertID := uuid.New()
	updated := &models.Alert{ID: alertID, DeliveredCount: 3}

	deps.repo.EXPECT().IncrementDelivered(ctx, alertID).Return(updated, nil).Times(1)

	alert, err := service.RecordDelivery(ctx, alertID)

	require.NoError(t, err)
	assert.Equal(t, 3, alert.DeliveredCount)
}

func TestRecordRead_NotFound(t *testing.T) {
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	alertID := uuid.New()

	deps.repo.EXPECT().IncrementRead(ctx, alertID).Return(nil, ErrNotFound).Times(1)

	alert, err := service.RecordRead(ctx, alertID)

	assert.Nil(t, alert)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAlerts_NormalizesPaging(t *testing.T) {
	service, deps := newTestAlertService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	deps.repo.EXPECT().List(ctx, 0, 100, &incidentID).Return([]*models.Alert{}, nil).Times(1)

	alerts, err := service.ListAlerts(ctx, -1, 500, &incidentID)

	require.NoError(t, err)
	assert.Empty(t, alerts)
}
