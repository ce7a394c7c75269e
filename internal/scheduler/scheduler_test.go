package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/nido/internal/config"
	"github.com/sweeney/nido/internal/mqtt"
	"github.com/sweeney/nido/internal/weather"
)

type fakeCache struct {
	results   []weather.Result
	calls     []int64
	locations []weather.Location
}

func (f *fakeCache) Get(ctx context.Context, now int64) weather.Result {
	f.calls = append(f.calls, now)
	if len(f.results) == 0 {
		return weather.Result{}
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res
}

func (f *fakeCache) SetLocation(loc weather.Location) {
	f.locations = append(f.locations, loc)
}

type fakeLocations struct {
	loc config.Location
	err error
}

func (f *fakeLocations) Location() (config.Location, error) {
	return f.loc, f.err
}

type recordingObserver struct {
	temps []float64
}

func (r *recordingObserver) ObserveConditions(c *weather.Conditions) {
	r.temps = append(r.temps, c.TempC)
}

var jobTime = time.Unix(1_700_000_000, 0)

func clock() time.Time { return jobTime }

func TestWeatherJobPublishesFreshConditions(t *testing.T) {
	cache := &fakeCache{results: []weather.Result{
		{Conditions: &weather.Conditions{TempC: 4.5}, Fetched: true},
	}}
	pub := mqtt.NewFakePublisher()
	obs := &recordingObserver{}

	job := NewWeatherJob(cache, nil, pub, obs, clock)
	job.Run()

	if len(cache.calls) != 1 || cache.calls[0] != jobTime.Unix() {
		t.Errorf("expected one lookup at %d, got %v", jobTime.Unix(), cache.calls)
	}
	if len(pub.WeatherEvents) != 1 {
		t.Fatalf("expected 1 weather event, got %d", len(pub.WeatherEvents))
	}
	ev := pub.WeatherEvents[0]
	if ev.Conditions.TempC != 4.5 || !ev.Timestamp.Equal(jobTime) {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(obs.temps) != 1 || obs.temps[0] != 4.5 {
		t.Errorf("unexpected observations %v", obs.temps)
	}
}

func TestWeatherJobSkipsCachedRepeats(t *testing.T) {
	cache := &fakeCache{results: []weather.Result{
		{Conditions: &weather.Conditions{TempC: 4.5}, Fetched: true},
		{Conditions: &weather.Conditions{TempC: 4.5}, AgeSeconds: 60},
	}}
	pub := mqtt.NewFakePublisher()

	job := NewWeatherJob(cache, nil, pub, nil, clock)
	job.Run()
	job.Run()

	if len(pub.WeatherEvents) != 1 {
		t.Errorf("expected cached result not to be republished, got %d events", len(pub.WeatherEvents))
	}
}

func TestWeatherJobPublishesFirstCachedResult(t *testing.T) {
	cache := &fakeCache{results: []weather.Result{
		{Conditions: &weather.Conditions{TempC: 4.5}, AgeSeconds: 30},
	}}
	pub := mqtt.NewFakePublisher()

	NewWeatherJob(cache, nil, pub, nil, clock).Run()

	if len(pub.WeatherEvents) != 1 {
		t.Errorf("expected first result to be published, got %d events", len(pub.WeatherEvents))
	}
}

func TestWeatherJobPublishesErrors(t *testing.T) {
	fetchErr := &weather.FetchError{Err: errors.New("timeout")}
	cache := &fakeCache{results: []weather.Result{
		{Conditions: &weather.Conditions{TempC: 3}, AgeSeconds: 1000, Err: fetchErr, Fetched: true},
	}}
	pub := mqtt.NewFakePublisher()
	obs := &recordingObserver{}

	NewWeatherJob(cache, nil, pub, obs, clock).Run()

	if len(pub.WeatherEvents) != 1 {
		t.Fatalf("expected 1 weather event, got %d", len(pub.WeatherEvents))
	}
	if pub.WeatherEvents[0].Err != fetchErr || pub.WeatherEvents[0].AgeSeconds != 1000 {
		t.Errorf("unexpected event %+v", pub.WeatherEvents[0])
	}
	if len(obs.temps) != 1 {
		t.Error("stale conditions should still be observed")
	}
}

func TestWeatherJobNoConditions(t *testing.T) {
	cache := &fakeCache{results: []weather.Result{
		{Err: errors.New("down"), Fetched: true},
	}}
	pub := mqtt.NewFakePublisher()
	obs := &recordingObserver{}

	NewWeatherJob(cache, nil, pub, obs, clock).Run()

	if len(obs.temps) != 0 {
		t.Error("nothing to observe without conditions")
	}
	if len(pub.WeatherEvents) != 1 || pub.WeatherEvents[0].Conditions != nil {
		t.Errorf("expected one event without conditions, got %+v", pub.WeatherEvents)
	}
}

func TestWeatherJobPublishErrorIsNotFatal(t *testing.T) {
	cache := &fakeCache{results: []weather.Result{{Fetched: true}}}
	pub := mqtt.NewFakePublisher()
	pub.PublishWeatherError = errors.New("broker down")

	NewWeatherJob(cache, nil, pub, nil, clock).Run()

	if len(cache.calls) != 1 {
		t.Errorf("expected lookup to run, got %d", len(cache.calls))
	}
}

func TestWeatherJobFollowsLocation(t *testing.T) {
	cache := &fakeCache{}
	locs := &fakeLocations{loc: config.Location{Zip: "94107"}}
	job := NewWeatherJob(cache, locs, mqtt.NewFakePublisher(), nil, clock)

	job.Run()
	job.Run()
	if len(cache.locations) != 1 || cache.locations[0].Zip != "94107" {
		t.Fatalf("expected location set once, got %+v", cache.locations)
	}

	lat, lon := 51.5, -0.12
	locs.loc = config.Location{Lat: &lat, Lon: &lon}
	job.Run()
	if len(cache.locations) != 2 || cache.locations[1].Query() != "51.5,-0.12" {
		t.Errorf("expected location change, got %+v", cache.locations)
	}
}

func TestWeatherJobKeepsLocationOnError(t *testing.T) {
	cache := &fakeCache{}
	locs := &fakeLocations{err: errors.New("config unreadable")}

	NewWeatherJob(cache, locs, mqtt.NewFakePublisher(), nil, clock).Run()

	if len(cache.locations) != 0 {
		t.Errorf("location must not change on error, got %+v", cache.locations)
	}
	if len(cache.calls) != 1 {
		t.Error("lookup should still run with the previous location")
	}
}

func TestSchedulerDefaultInterval(t *testing.T) {
	s := New(NewWeatherJob(&fakeCache{}, nil, mqtt.NewFakePublisher(), nil, clock), 0)
	if s.interval != DefaultInterval {
		t.Errorf("expected %v, got %v", DefaultInterval, s.interval)
	}
}
