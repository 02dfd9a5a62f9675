package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/utils"
)

const audioContentType = "audio/mpeg"

// handleSearch serves one search endpoint
func (s *Server) handleSearch(searcher interfaces.Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SearchRequest
		if err := utils.DecodeJSONBody(r, s.opts.Config.MaxBodyBytes, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := searcher.Search(r.Context(), &req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", string(result.CacheStatus))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(result.Body); err != nil {
			s.logger.Debug("Failed to write search response", zap.Error(err))
		}
	}
}

// handleSynthesize renders a podcast and returns the audio directly
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req models.PodcastRequest
	if err := utils.DecodeJSONBody(r, s.opts.Config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.opts.Synthesizer.Synthesize(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeAudio(w, result.Audio, result.ContentType, string(result.CacheStatus))
}

// handleSubmitJob queues a podcast for background rendering
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req models.PodcastRequest
	if err := utils.DecodeJSONBody(r, s.opts.Config.MaxBodyBytes, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.opts.Jobs.Submit(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", RouteJobs+"/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, &JobAccepted{ID: job.ID, Status: job.Status})
}

// handleJob reports the state of a job
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.opts.Jobs.Job(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleJobAudio returns the audio of a completed job
func (s *Server) handleJobAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := s.opts.Jobs.JobAudio(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAudio(w, audio, "", "")
}

func (s *Server) writeAudio(w http.ResponseWriter, audio []byte, contentType, cacheStatus string) {
	if contentType == "" {
		contentType = audioContentType
	}
	w.Header().Set("Content-Type", contentType)
	if cacheStatus != "" {
		w.Header().Set("X-Cache", cacheStatus)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		s.logger.Debug("Failed to write audio response", zap.Error(err))
	}
}
