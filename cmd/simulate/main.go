package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinician-availability/internal/config"
	"github.com/hackgods/clinician-availability/internal/logging"
	"github.com/hackgods/clinician-availability/internal/schedule"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	RescheduleRatio float64
	CancelRatio     float64
	LeaveRatio      float64
	ReadRatio       float64
	Clinicians      int
	Patients        int
	Days            int
	StartDate       time.Time
}

type DataPool struct {
	Clinicians   []string
	Patients     []string
	Dates        []string
	mu           sync.RWMutex
	appointments []uuid.UUID // ids of appointments created during the run
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

func pick(rng *rand.Rand, xs []string) string {
	return xs[rng.Intn(len(xs))]
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Reschedule   OperationMetrics
	Cancel       OperationMetrics
	LeaveToggle  OperationMetrics
	LeaveUndo    OperationMetrics
	Availability OperationMetrics
	ReadByID     OperationMetrics
	ListByDate   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logging.Init("simulate", baseCfg.Env, baseCfg.LogLevel)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("leave", cfg.LeaveRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   buildDataPool(cfg),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	start := schedule.Day(time.Now().AddDate(0, 0, 1))
	if v := os.Getenv("SIM_START_DATE"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			return SimConfig{}, fmt.Errorf("SIM_START_DATE: %w", err)
		}
		start = d
	}

	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.05),
		LeaveRatio:      getFloat("SIM_LEAVE_RATIO", 0.05),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		Clinicians:      getInt("SIM_CLINICIANS", 10),
		Patients:        getInt("SIM_PATIENTS", 1000),
		Days:            getInt("SIM_DAYS", 7),
		StartDate:       start,
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Clinicians <= 0 || cfg.Patients <= 0 || cfg.Days <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_CLINICIANS, SIM_PATIENTS and SIM_DAYS must be > 0")
	}

	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.CancelRatio + cfg.LeaveRatio + cfg.ReadRatio
	if total <= 0 {
		return SimConfig{}, fmt.Errorf("operation ratios must add up to more than 0")
	}
	cfg.BookingRatio /= total
	cfg.RescheduleRatio /= total
	cfg.CancelRatio /= total
	cfg.LeaveRatio /= total
	cfg.ReadRatio /= total

	return cfg, nil
}

// buildDataPool uses the same id scheme as cmd/seed so both can target
// one database.
func buildDataPool(cfg SimConfig) *DataPool {
	dp := &DataPool{}
	for i := 1; i <= cfg.Clinicians; i++ {
		dp.Clinicians = append(dp.Clinicians, fmt.Sprintf("C%03d", i))
	}
	for i := 1; i <= cfg.Patients; i++ {
		dp.Patients = append(dp.Patients, fmt.Sprintf("P%05d", i))
	}
	for i := 0; i < cfg.Days; i++ {
		dp.Dates = append(dp.Dates, schedule.FormatDate(cfg.StartDate.AddDate(0, 0, i)))
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < c.BookingRatio:
				s.doBooking(ctx, rng)
			case r < c.BookingRatio+c.RescheduleRatio:
				s.doReschedule(ctx, rng)
			case r < c.BookingRatio+c.RescheduleRatio+c.CancelRatio:
				s.doCancel(ctx, rng)
			case r < c.BookingRatio+c.RescheduleRatio+c.CancelRatio+c.LeaveRatio:
				s.doLeave(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doAvailability(ctx, rng)
				case 1:
					s.doReadByID(ctx, rng)
				case 2:
					s.doListByDate(ctx, rng)
				}
			}
		}
	}
}

// call sends one request and reports whether it succeeded or hit a conflict.
// When out is non-nil a successful JSON body is decoded into it.
func (s *Simulator) call(ctx context.Context, method, path string, body any, ok int, out any) (time.Duration, bool, bool) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, false, false
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, false, false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, false, false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case ok:
		if out != nil {
			_ = json.NewDecoder(resp.Body).Decode(out)
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
		}
		return latency, true, false
	case http.StatusConflict:
		return latency, false, true
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return latency, false, false
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	clinicianID := pick(rng, s.pool.Clinicians)
	date := pick(rng, s.pool.Dates)

	// pick a slot the server currently offers so most conflicts are real races
	var avail struct {
		Slots []struct {
			Label string `json:"label"`
		} `json:"slots"`
	}
	if _, ok, _ := s.call(ctx, http.MethodGet, fmt.Sprintf("/clinicians/%s/availability?date=%s", clinicianID, date), nil, http.StatusOK, &avail); !ok || len(avail.Slots) == 0 {
		return
	}
	slot := avail.Slots[rng.Intn(len(avail.Slots))].Label

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	latency, success, conflict := s.call(ctx, http.MethodPost, "/appointments", map[string]string{
		"clinician_id": clinicianID,
		"patient_id":   pick(rng, s.pool.Patients),
		"date":         date,
		"slot":         slot,
	}, http.StatusCreated, &appt)
	if success && appt.ID != uuid.Nil {
		s.pool.AddAppointment(appt.ID)
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	slots := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "15:00", "15:30", "16:00", "16:30", "17:00", "17:30"}
	latency, success, conflict := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/reschedule", apptID), map[string]string{
		"date": pick(rng, s.pool.Dates),
		"slot": pick(rng, slots),
	}, http.StatusOK, nil)

	s.metrics.Reschedule.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	latency, success, conflict := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", apptID), nil, http.StatusOK, nil)
	s.metrics.Cancel.Record(latency, success, conflict)
}

// doLeave toggles a leave change and usually undoes it straight away, so
// the run does not slowly block every clinician.
func (s *Simulator) doLeave(ctx context.Context, rng *rand.Rand) {
	clinicianID := pick(rng, s.pool.Clinicians)
	date := pick(rng, s.pool.Dates)

	var (
		path string
		body map[string]string
	)
	switch rng.Intn(3) {
	case 0:
		path, body = "full-day", map[string]string{"date": date}
	case 1:
		period := string(schedule.PeriodMorning)
		if rng.Intn(2) == 1 {
			period = string(schedule.PeriodAfternoon)
		}
		path, body = "period", map[string]string{"date": date, "period": period}
	default:
		path, body = "slot", map[string]string{"date": date, "slot": "10:00"}
	}

	latency, success, conflict := s.call(ctx, http.MethodPost, fmt.Sprintf("/clinicians/%s/leave/%s", clinicianID, path), body, http.StatusOK, nil)
	s.metrics.LeaveToggle.Record(latency, success, conflict)

	if !success || rng.Float64() < 0.2 {
		return
	}

	latency, success, conflict = s.call(ctx, http.MethodPost, fmt.Sprintf("/clinicians/%s/leave/undo", clinicianID), nil, http.StatusOK, nil)
	s.metrics.LeaveUndo.Record(latency, success, conflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	latency, success, _ := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/clinicians/%s/availability?date=%s", pick(rng, s.pool.Clinicians), pick(rng, s.pool.Dates)),
		nil, http.StatusOK, nil)
	s.metrics.Availability.Record(latency, success, false)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	latency, success, _ := s.call(ctx, http.MethodGet, fmt.Sprintf("/appointments/%s", apptID), nil, http.StatusOK, nil)
	s.metrics.ReadByID.Record(latency, success, false)
}

func (s *Simulator) doListByDate(ctx context.Context, rng *rand.Rand) {
	latency, success, _ := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/clinicians/%s/appointments?date=%s", pick(rng, s.pool.Clinicians), pick(rng, s.pool.Dates)),
		nil, http.StatusOK, nil)
	s.metrics.ListByDate.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Leave toggle", &s.metrics.LeaveToggle)
	printOperationReport("Leave undo", &s.metrics.LeaveUndo)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Date", &s.metrics.ListByDate)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
