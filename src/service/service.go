package service

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/node"
)

// submitRate bounds attestation submissions to one burst of 20 and 5 per
// second sustained, which is far above honest classroom traffic.
const (
	submitRate  rate.Limit = 5
	submitBurst            = 20
)

// SubmitRequest is the JSON body of POST /submit.
type SubmitRequest struct {
	QuestionID   string  `json:"question_id"`
	QuestionType string  `json:"question_type"`
	Answer       string  `json:"answer"`
	Score        float64 `json:"score"`
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	limiter     *rate.Limiter
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		limiter:     rate.NewLimiter(submitRate, submitBurst),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of
// the http package. Another server in the same process using the
// DefaultServerMux will expose these handlers too, which is useful when the
// engine runs in-process with the application's own API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/block/", s.makeHandler(s.GetBlock))
	http.HandleFunc("/distribution/", s.makeHandler(s.GetDistribution))
	http.HandleFunc("/reputation", s.makeHandler(s.GetReputation))
	http.HandleFunc("/profile", s.makeHandler(s.GetProfile))
	http.HandleFunc("/submit", s.makeHandler(s.Submit))
	http.HandleFunc("/mine", s.makeHandler(s.Mine))
	http.HandleFunc("/export", s.makeHandler(s.Export))
	http.HandleFunc("/import", s.makeHandler(s.Import))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary
// to call Serve when another server has already been started with the
// DefaultServerMux and the same address:port combination.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.Stats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetBlock ...
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/block/"):]

	blockIndex, err := strconv.Atoi(param)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing block_index parameter %s", param)

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	block, err := s.node.GetBlock(blockIndex)
	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving block %d", blockIndex)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(block)
}

// GetDistribution ...
func (s *Service) GetDistribution(w http.ResponseWriter, r *http.Request) {
	questionID := r.URL.Path[len("/distribution/"):]

	dist, err := s.node.Distribution(questionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(dist)
}

// GetReputation ...
func (s *Service) GetReputation(w http.ResponseWriter, r *http.Request) {
	score, err := s.node.Reputation()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]float64{"reputation": score})
}

// GetProfile returns the active profile without private key material.
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.node.PublicProfile()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(profile)
}

// Submit pools a signed attestation transaction.
func (s *Service) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	if !s.limiter.Allow() {
		http.Error(w, "too many submissions", http.StatusTooManyRequests)

		return
	}

	req := SubmitRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	tx, err := s.node.Submit(req.QuestionID, req.QuestionType, req.Answer, req.Score)
	if err != nil {
		s.logger.WithError(err).Error("Submitting transaction")

		status := http.StatusInternalServerError
		if chain.IsValidation(err) {
			status = http.StatusBadRequest
		} else if err == node.ErrLockedProfile {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(tx)
}

// Mine triggers one mining step. A 204 means no block formed, which is the
// normal outcome for an empty mempool or an unmet quorum.
func (s *Service) Mine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	block, err := s.node.Mine()
	if err != nil {
		s.logger.WithError(err).Error("Mining")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if block == nil {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(block)
}

// Export returns the node's shareable state as canonical JSON.
func (s *Service) Export(w http.ResponseWriter, r *http.Request) {
	blob, err := s.node.Export()
	if err != nil {
		s.logger.WithError(err).Error("Exporting state")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	w.Write(blob)
}

// Import merges a peer's exported blob into the node.
func (s *Service) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	raw, err := ioutil.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	rejected, err := s.node.Import(raw)
	if err != nil {
		s.logger.WithError(err).Error("Importing state")

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]int{"rejected": rejected})
}
