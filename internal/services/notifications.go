package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/clinic-api/internal/config"
	"github.com/harentsoaR/clinic-api/internal/models"
)

// Notifier tells a patient about a change to their appointment.
type Notifier interface {
	AppointmentChanged(patient *models.User, apt *models.Appointment)
}

// NotificationService sends appointment SMS through the Textbelt API. Sends
// are asynchronous and best effort.
type NotificationService struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      *logrus.Logger
	wg       sync.WaitGroup
}

func NewNotificationService(cfg config.NotifyConfig, log *logrus.Logger) *NotificationService {
	return &NotificationService{
		apiKey:   cfg.TextbeltKey,
		endpoint: cfg.TextbeltURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func smsBody(apt *models.Appointment) string {
	when := apt.StartTime.Format("Jan 2 at 3:04 PM")
	switch apt.Status {
	case models.StatusConfirmed:
		return fmt.Sprintf("Appointment confirmed: %s (UTC).", when)
	case models.StatusCancelled:
		return fmt.Sprintf("Appointment on %s (UTC) has been cancelled.", when)
	default:
		return fmt.Sprintf("Appointment on %s (UTC) is now %s.", when, apt.Status)
	}
}

func (s *NotificationService) AppointmentChanged(patient *models.User, apt *models.Appointment) {
	if s.apiKey == "" {
		return
	}
	if patient.Phone == "" {
		s.log.WithField("patientId", patient.ID.Hex()).Info("SMS not sent: patient has no phone number")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.send(patient.Phone, smsBody(apt))
	}()
}

// Wait blocks until in-flight sends finish.
func (s *NotificationService) Wait() { s.wg.Wait() }

func (s *NotificationService) send(phone, message string) {
	postBody, _ := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     s.apiKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(postBody))
	if err != nil {
		s.log.WithError(err).Warn("failed to build Textbelt request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).WithField("phone", phone).Warn("failed to send Textbelt request")
		return
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.Success {
		s.log.WithField("phone", phone).WithField("reason", result.Error).Warn("Textbelt rejected SMS")
		return
	}
	s.log.WithField("phone", phone).Info("sent appointment SMS")
}
