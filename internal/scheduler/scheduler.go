// Package scheduler refreshes outdoor conditions on a fixed interval and
// publishes them, independently of the control loop.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/sweeney/nido/internal/config"
	"github.com/sweeney/nido/internal/mqtt"
	"github.com/sweeney/nido/internal/weather"
)

// DefaultInterval matches the conditions cache TTL so each run normally
// performs exactly one remote fetch.
const DefaultInterval = weather.DefaultTTL

// Conditions is the part of weather.Cache the job drives.
type Conditions interface {
	Get(ctx context.Context, now int64) weather.Result
	SetLocation(loc weather.Location)
}

// LocationSource supplies the configured location. It is re-read on every
// run so edits to the configuration file take effect.
type LocationSource interface {
	Location() (config.Location, error)
}

// ConditionsObserver is told about every successful lookup.
type ConditionsObserver interface {
	ObserveConditions(c *weather.Conditions)
}

// WeatherJob looks up conditions and publishes them.
type WeatherJob struct {
	cache     Conditions
	locations LocationSource
	publisher mqtt.Publisher
	observer  ConditionsObserver
	now       func() time.Time
	timeout   time.Duration

	lastQuery string
	haveLoc   bool
	published bool
}

// NewWeatherJob creates a job. observer may be nil.
func NewWeatherJob(cache Conditions, locations LocationSource, publisher mqtt.Publisher, observer ConditionsObserver, now func() time.Time) *WeatherJob {
	if now == nil {
		now = time.Now
	}
	return &WeatherJob{
		cache:     cache,
		locations: locations,
		publisher: publisher,
		observer:  observer,
		now:       now,
		timeout:   30 * time.Second,
	}
}

// Run performs one refresh. Failures are logged, never returned: a missed
// weather update must not affect anything else.
func (j *WeatherJob) Run() {
	j.refreshLocation()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	t := j.now()
	res := j.cache.Get(ctx, t.Unix())
	if res.Err != nil {
		log.Printf("scheduler: weather: %v", res.Err)
	}
	if res.Conditions != nil && j.observer != nil {
		j.observer.ObserveConditions(res.Conditions)
	}
	if !res.Fetched && j.published {
		// Served from cache; subscribers already have it.
		return
	}
	j.published = true

	if err := j.publisher.PublishWeather(mqtt.WeatherEvent{
		Timestamp:  t,
		Conditions: res.Conditions,
		AgeSeconds: res.AgeSeconds,
		Err:        res.Err,
	}); err != nil {
		log.Printf("scheduler: publish weather: %v", err)
	}
}

func (j *WeatherJob) refreshLocation() {
	if j.locations == nil {
		return
	}
	cl, err := j.locations.Location()
	if err != nil {
		log.Printf("scheduler: load location: %v", err)
		return
	}
	loc := weather.Location{Lat: cl.Lat, Lon: cl.Lon, Zip: cl.Zip}
	q := loc.Query()
	if j.haveLoc && q == j.lastQuery {
		return
	}
	if j.haveLoc {
		log.Printf("scheduler: weather location changed to %s", q)
	}
	j.haveLoc, j.lastQuery = true, q
	j.cache.SetLocation(loc)
}

// Scheduler runs a WeatherJob periodically.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *WeatherJob
	interval  time.Duration
}

// New creates a Scheduler. A non-positive interval selects DefaultInterval.
func New(job *WeatherJob, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
	}
}

// Start schedules the job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(s.job.Run)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	log.Printf("scheduler: weather refresh every %v", s.interval)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
