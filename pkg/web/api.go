package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/database"
	"github.com/dbehnke/dis-nexus/pkg/logger"
	"github.com/dbehnke/dis-nexus/pkg/metrics"
	"github.com/dbehnke/dis-nexus/pkg/protocol"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// EventStore is the read side of the event repository used by the API
type EventStore interface {
	GetRecent(limit int) ([]database.IntercomEvent, error)
	GetBySourceEntity(entity string, limit int) ([]database.IntercomEvent, error)
	GetByTimeRange(start, end time.Time, limit int) ([]database.IntercomEvent, error)
	Count() (int64, error)
	CountByRecordType() ([]database.RecordTypeCount, error)
}

// API handles REST API endpoints
type API struct {
	logger    *logger.Logger
	store     EventStore
	collector *metrics.Collector
	registry  *protocol.Registry
	started   time.Time
}

// NewAPI creates a new API instance. store and collector may be nil.
func NewAPI(log *logger.Logger, store EventStore, collector *metrics.Collector) *API {
	return &API{
		logger:    log,
		store:     store,
		collector: collector,
		registry:  protocol.DefaultRegistry(),
		started:   time.Now(),
	}
}

// RecordTypeInfo describes one record type known to the registry or seen in storage
type RecordTypeInfo struct {
	RecordType   uint16 `json:"record_type"`
	Shape        string `json:"shape"`
	Registered   bool   `json:"registered"`
	StoredCount  int64  `json:"stored_count"`
	DecodedCount uint64 `json:"decoded_count"`
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	build := GetBuildInfo()
	response := map[string]interface{}{
		"status":         "running",
		"service":        "dis-nexus",
		"version":        build.Version,
		"commit":         build.Commit,
		"build_time":     build.BuildTime,
		"uptime_seconds": int64(time.Since(a.started).Seconds()),
	}

	if a.collector != nil {
		response["pdus_received"] = a.collector.GetPDUsReceived()
		response["pdus_filtered"] = a.collector.GetPDUsFiltered()
		response["intercom_decoded"] = a.collector.GetIntercomDecoded()
		response["records_decoded"] = a.collector.GetRecordsDecoded()
		response["unknown_records"] = a.collector.GetUnknownRecords()
		response["decode_errors"] = a.collector.GetDecodeErrors()
	}

	if a.store != nil {
		count, err := a.store.Count()
		if err != nil {
			a.logger.Warn("Failed to count events", logger.Error(err))
		} else {
			response["events_stored"] = count
		}
	}

	a.writeJSON(w, http.StatusOK, response)
}

// HandleEvents handles the /api/events endpoint. Optional query parameters:
// limit, source (site:application:entity) and since (RFC 3339).
func (a *API) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	source := r.URL.Query().Get("source")
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		since = t
	}

	events := []database.IntercomEvent{}
	if a.store != nil {
		var recent []database.IntercomEvent
		var err error
		switch {
		case source != "":
			recent, err = a.store.GetBySourceEntity(source, limit)
		case !since.IsZero():
			recent, err = a.store.GetByTimeRange(since, time.Now(), limit)
		default:
			recent, err = a.store.GetRecent(limit)
		}
		if err != nil {
			a.logger.Error("Failed to load events", logger.Error(err))
			http.Error(w, "failed to load events", http.StatusInternalServerError)
			return
		}
		if recent != nil {
			events = recent
		}
	}

	a.writeJSON(w, http.StatusOK, events)
}

// HandleRecordTypes handles the /api/records/types endpoint
func (a *API) HandleRecordTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	byType := make(map[uint16]*RecordTypeInfo)
	order := []uint16{}
	entry := func(t uint16) *RecordTypeInfo {
		if info, ok := byType[t]; ok {
			return info
		}
		_, registered := a.registry.Lookup(t)
		info := &RecordTypeInfo{RecordType: t, Shape: a.registry.Name(t), Registered: registered}
		byType[t] = info
		order = append(order, t)
		return info
	}

	for _, t := range a.registry.Types() {
		entry(t)
	}

	if a.store != nil {
		counts, err := a.store.CountByRecordType()
		if err != nil {
			a.logger.Error("Failed to count record types", logger.Error(err))
			http.Error(w, "failed to count record types", http.StatusInternalServerError)
			return
		}
		for _, c := range counts {
			entry(c.RecordType).StoredCount = c.Count
		}
	}

	if a.collector != nil {
		for _, tc := range a.collector.GetRecordsDecodedByType() {
			entry(tc.Type).DecodedCount = tc.Count
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	types := make([]RecordTypeInfo, 0, len(order))
	for _, t := range order {
		types = append(types, *byType[t])
	}

	a.writeJSON(w, http.StatusOK, types)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}
