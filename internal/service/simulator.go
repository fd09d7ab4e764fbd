package service

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"
)

// ----------- Simulation constants -----------
const (
	AmbientC            = 24.0 // temperature with sector closed, °C
	SectorCoolingC      = 0.04 // °C drop per % of sector opening
	BaseHumidity        = 45.0 // %RH with sector closed
	SectorHumidifying   = 0.4  // %RH gain per % of sector opening
	DriftFactor         = 0.1  // share of the gap to target closed per tick
	TemperatureJitterC  = 0.15
	HumidityJitter      = 0.5
	DefaultSectorOpenPc = 20.0
)

var (
	ErrUnknownGreenhouse = errors.New("unknown greenhouse")
	ErrUnknownSector     = errors.New("unknown sector")
)

// Recorder receives produced readings.
type Recorder interface {
	Record(ctx context.Context, m models.GreenhouseMessage) error
}

type greenhouseSim struct {
	temp   [2]float64
	hum    [2]float64
	sector float64
}

// SimulatorService produces readings for a fixed set of greenhouses.
type SimulatorService struct {
	mu     sync.Mutex
	houses map[string]*greenhouseSim
	rnd    *rand.Rand

	sink Recorder
	log  *logger.Logger
	now  func() time.Time
}

// NewSimulatorService returns a simulator with greenhouses 001 and 002.
func NewSimulatorService(log *logger.Logger) *SimulatorService {
	s := &SimulatorService{
		houses: make(map[string]*greenhouseSim),
		rnd:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		log:    log,
		now:    time.Now,
	}
	for _, id := range []string{"001", "002"} {
		s.houses[id] = &greenhouseSim{
			temp:   [2]float64{AmbientC, AmbientC + 0.5},
			hum:    [2]float64{BaseHumidity, BaseHumidity + 2},
			sector: DefaultSectorOpenPc,
		}
	}
	return s
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, m := range s.Step(now) {
				if s.sink == nil {
					continue
				}
				if err := s.sink.Record(ctx, m); err != nil && s.log != nil {
					s.log.Errorw("simulator_record_failed", "greenhouse", m.GreenhouseID, "err", err)
				}
			}
		}
	}
}

// Step advances every greenhouse by one tick and returns their readings ordered by id.
func (s *SimulatorService) Step(now time.Time) []models.GreenhouseMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.houses))
	for id := range s.houses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ts := now.UTC().Format(time.RFC3339Nano)
	out := make([]models.GreenhouseMessage, 0, len(ids))
	for _, id := range ids {
		g := s.houses[id]
		targetT := AmbientC - SectorCoolingC*g.sector
		targetH := BaseHumidity + SectorHumidifying*g.sector
		for i := range g.temp {
			g.temp[i] += (targetT-g.temp[i])*DriftFactor + s.jitter(TemperatureJitterC)
			g.hum[i] = clamp(g.hum[i]+(targetH-g.hum[i])*DriftFactor+s.jitter(HumidityJitter), 0, 100)
		}
		out = append(out, models.GreenhouseMessage{
			Timestamp:     ts,
			Temperature01: models.Float(round1(g.temp[0])),
			Humidity01:    models.Float(round1(g.hum[0])),
			Temperature02: models.Float(round1(g.temp[1])),
			Humidity02:    models.Float(round1(g.hum[1])),
			Sector01:      models.Float(round1(g.sector)),
			GreenhouseID:  id,
		})
	}
	return out
}

// SetSector sets the opening of a sector in percent. Only sector 1 is simulated.
func (s *SimulatorService) SetSector(greenhouseID string, sector int, opening float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.houses[greenhouseID]
	if !ok {
		return ErrUnknownGreenhouse
	}
	if sector != 1 {
		return ErrUnknownSector
	}
	g.sector = clamp(opening, 0, 100)
	if s.log != nil {
		s.log.Infow("sector_setpoint", "greenhouse", greenhouseID, "sector", sector, "opening", g.sector)
	}
	return nil
}

func (s *SimulatorService) jitter(amplitude float64) float64 {
	return (s.rnd.Float64()*2 - 1) * amplitude
}

// helpers
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
