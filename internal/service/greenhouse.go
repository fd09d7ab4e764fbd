package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/repository"
)

var (
	ErrInvalidTopic    = errors.New("invalid topic")
	ErrInvalidQoS      = errors.New("qos must be 0, 1 or 2")
	ErrInvalidSetpoint = errors.New("setpoint must be a number between 0 and 100")
)

// sectorTopic addresses an irrigation sector: greenhouse/<id>/sector/<n>.
var sectorTopic = regexp.MustCompile(`^greenhouse/([^/]+)/sector/(\d+)$`)

var greenhouseTopic = regexp.MustCompile(`^greenhouse/([^/]+)/`)

// SectorControl applies a sector opening setpoint.
type SectorControl interface {
	SetSector(greenhouseID string, sector int, opening float64) error
}

type GreenhouseService struct {
	repo    repository.MessageRepo
	hub     Broadcaster
	sectors SectorControl
	log     *logger.Logger
	now     func() time.Time
}

func NewGreenhouseService(repo repository.MessageRepo, hub Broadcaster, sectors SectorControl, log *logger.Logger) *GreenhouseService {
	return &GreenhouseService{repo: repo, hub: hub, sectors: sectors, log: log, now: time.Now}
}

// Record stores a reading and pushes it to realtime subscribers.
func (s *GreenhouseService) Record(ctx context.Context, m models.GreenhouseMessage) error {
	if m.Timestamp == "" {
		m.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	}
	if m.GreenhouseID == "" {
		m.GreenhouseID = gm.DefaultGreenhouseID
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return err
	}
	body, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	n := s.hub.Publish(body)
	if s.log != nil {
		s.log.Debugw("message_broadcast", "greenhouse", m.GreenhouseID, "ts", m.Timestamp, "subscribers", n)
	}
	return nil
}

// Recent returns the latest stored readings, oldest first.
func (s *GreenhouseService) Recent(ctx context.Context, limit int) ([]models.GreenhouseMessage, error) {
	return s.repo.Recent(ctx, limit)
}

// PublishCustom accepts a raw publish. Sector topics move the simulated sector;
// every publish is echoed to subscribers as a raw-payload message.
func (s *GreenhouseService) PublishCustom(ctx context.Context, topic string, qos int, payload []byte) error {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	if qos < 0 || qos > 2 {
		return ErrInvalidQoS
	}

	if m := sectorTopic.FindStringSubmatch(topic); m != nil {
		sector, _ := strconv.Atoi(m[2])
		opening, err := parseSetpoint(payload)
		if err != nil {
			return err
		}
		if err := s.sectors.SetSector(m[1], sector, opening); err != nil {
			return err
		}
	}

	id := gm.DefaultGreenhouseID
	if m := greenhouseTopic.FindStringSubmatch(topic); m != nil {
		id = m[1]
	}
	raw := string(payload)
	if s.log != nil {
		s.log.Infow("custom_publish", "topic", topic, "qos", qos, "bytes", len(payload))
	}
	return s.Record(ctx, models.GreenhouseMessage{GreenhouseID: id, RawPayload: &raw})
}

// parseSetpoint accepts 42, "42" or {"value": 42}.
func parseSetpoint(payload []byte) (float64, error) {
	var v float64
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		f, perr := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if perr != nil {
			return 0, ErrInvalidSetpoint
		}
		v = f
	} else {
		switch t := raw.(type) {
		case float64:
			v = t
		case string:
			f, perr := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if perr != nil {
				return 0, ErrInvalidSetpoint
			}
			v = f
		case map[string]any:
			f, ok := t["value"].(float64)
			if !ok {
				return 0, ErrInvalidSetpoint
			}
			v = f
		default:
			return 0, ErrInvalidSetpoint
		}
	}
	if v < 0 || v > 100 {
		return 0, ErrInvalidSetpoint
	}
	return v, nil
}
