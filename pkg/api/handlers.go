package api

import (
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jingkaihe/skillctl/pkg/drift"
	"github.com/jingkaihe/skillctl/pkg/lint"
	"github.com/jingkaihe/skillctl/pkg/logger"
	"github.com/jingkaihe/skillctl/pkg/report"
	"github.com/jingkaihe/skillctl/pkg/skills"
	"github.com/pkg/errors"
)

// ListSkillsResponse is the body of GET /api/skills
type ListSkillsResponse struct {
	Root   string           `json:"root"`
	Trees  []string         `json:"trees"`
	Skills []skills.Summary `json:"skills"`
	Total  int              `json:"total"`
}

// DriftResponse is the body of GET /api/drift
type DriftResponse struct {
	*drift.Result
	Summary drift.Summary `json:"summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(r.Context(), w, map[string]any{"status": "ok"})
}

// loadCorpus loads the corpus for one request. Skills that failed to load
// are logged and left out.
func (s *Server) loadCorpus(w http.ResponseWriter, r *http.Request) (*skills.Corpus, bool) {
	corpus, err := s.source.Load(r.Context())
	if corpus == nil {
		writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "failed to load skills", err)
		return nil, false
	}
	if err != nil {
		logger.G(r.Context()).WithError(err).Warn("some skills could not be loaded")
	}
	return corpus, true
}

// handleListSkills handles GET /api/skills?tree=&q=
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.loadCorpus(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	tree := query.Get("tree")
	q := strings.ToLower(strings.TrimSpace(query.Get("q")))

	var matched []*skills.Skill
	for _, skill := range corpus.Skills {
		if tree != "" && skill.Tree != tree {
			continue
		}
		if q != "" && !matchesQuery(skill, q) {
			continue
		}
		matched = append(matched, skill)
	}

	writeJSONResponse(r.Context(), w, ListSkillsResponse{
		Root:   corpus.Root,
		Trees:  corpus.Trees,
		Skills: corpus.Summarize(matched),
		Total:  len(matched),
	})
}

func matchesQuery(skill *skills.Skill, q string) bool {
	return strings.Contains(strings.ToLower(skill.Name), q) ||
		strings.Contains(strings.ToLower(skill.DirName()), q) ||
		strings.Contains(strings.ToLower(skill.Description), q)
}

// handleGetSkill handles GET /api/skills/{tree}/{name}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.loadCorpus(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	skill, found := corpus.Find(vars["tree"], vars["name"])
	if !found {
		writeErrorResponse(r.Context(), w, http.StatusNotFound, "skill not found", nil)
		return
	}
	writeJSONResponse(r.Context(), w, corpus.Detail(skill))
}

// handleGetSkillFile handles GET /api/skills/{tree}/{name}/files/{path}
func (s *Server) handleGetSkillFile(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.loadCorpus(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	skill, found := corpus.Find(vars["tree"], vars["name"])
	if !found {
		writeErrorResponse(r.Context(), w, http.StatusNotFound, "skill not found", nil)
		return
	}

	data, err := skill.ReadFile(vars["path"])
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeErrorResponse(r.Context(), w, http.StatusNotFound, "file not found", nil)
		return
	case err != nil:
		writeErrorResponse(r.Context(), w, http.StatusBadRequest, "invalid file path", err)
		return
	}

	contentType := "application/octet-stream"
	if skills.IsMarkdown(vars["path"]) || path.Base(vars["path"]) == skills.SkillFileName {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleLint handles GET /api/lint
func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.loadCorpus(w, r)
	if !ok {
		return
	}

	linter, err := lint.New(s.config.LintOptions)
	if err != nil {
		writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "invalid lint options", err)
		return
	}
	result, err := linter.Run(r.Context(), corpus)
	if err != nil {
		writeErrorResponse(r.Context(), w, http.StatusInternalServerError, "lint failed", err)
		return
	}
	writeJSONResponse(r.Context(), w, report.New(corpus.Root, result, 0))
}

// handleDrift handles GET /api/drift?base=&diff=
func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	corpus, ok := s.loadCorpus(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	base := query.Get("base")
	if base == "" && len(corpus.Trees) > 0 {
		base = corpus.Trees[0]
	}
	withDiff, _ := strconv.ParseBool(query.Get("diff"))

	result, err := drift.Compare(corpus, base, drift.Options{Diff: withDiff})
	if err != nil {
		writeErrorResponse(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	writeJSONResponse(r.Context(), w, DriftResponse{Result: result, Summary: result.Summary()})
}
