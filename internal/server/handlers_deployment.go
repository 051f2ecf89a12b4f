package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/theinhumaneme/hikari/api"
	"github.com/theinhumaneme/hikari/internal/db"
	"github.com/theinhumaneme/hikari/internal/notifier"
)

func deploymentToAPI(r db.DeploymentRow) api.Deployment {
	return api.Deployment{
		ID:          r.ID,
		Name:        r.Name,
		Client:      r.Client,
		Environment: r.Environment,
		Solution:    r.Solution,
	}
}

func deploymentFromAPI(d api.Deployment) db.DeploymentRow {
	return db.DeploymentRow{
		ID:          d.ID,
		Name:        d.Name,
		Client:      d.Client,
		Environment: d.Environment,
		Solution:    d.Solution,
	}
}

// notifyDeployment broadcasts a "DEPLOYMENT UPDATED" event for a deployment's
// own target, per spec.md §4.7.
func (s *Server) notifyDeployment(d db.DeploymentRow) {
	target := notifier.Target(d.Client, d.Environment, d.Solution)
	go s.Notifier.Broadcast(target, notifier.Updated)
}

func (s *Server) handleDeploymentList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Repo.Deployments.FindAll(r.Context())
	if err != nil {
		writeDBErr(w, "deployments.list", err)
		return
	}
	out := make([]api.Deployment, len(rows))
	for i, row := range rows {
		out[i] = deploymentToAPI(row)
	}
	jsonOK(w, out)
}

func (s *Server) handleDeploymentGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	row, err := s.Repo.Deployments.FindByID(r.Context(), id)
	if err != nil {
		writeDBErr(w, "deployment.get", err)
		return
	}
	jsonOK(w, deploymentToAPI(*row))
}

func (s *Server) handleDeploymentCreate(w http.ResponseWriter, r *http.Request) {
	var in api.Deployment
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID != 0 {
		jsonErr(w, http.StatusBadRequest, "id must not be set on create")
		return
	}
	row, err := s.Repo.Deployments.Create(r.Context(), deploymentFromAPI(in))
	if err != nil {
		writeDBErr(w, "deployment.create", err)
		return
	}
	s.notifyDeployment(*row)
	jsonOK(w, deploymentToAPI(*row))
}

func (s *Server) handleDeploymentUpdate(w http.ResponseWriter, r *http.Request) {
	var in api.Deployment
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID == 0 {
		jsonErr(w, http.StatusBadRequest, "id is required")
		return
	}
	existing, err := s.Repo.Deployments.FindByID(r.Context(), in.ID)
	if err != nil {
		writeDBErr(w, "deployment.update", err)
		return
	}
	if deploymentToAPI(*existing) == in {
		jsonStatus(w, http.StatusNotModified, nil)
		return
	}

	updated := deploymentFromAPI(in)
	if _, err := s.Repo.Deployments.Update(r.Context(), updated); err != nil {
		writeDBErr(w, "deployment.update", err)
		return
	}

	// A target-changing update must notify both the old and new targets so
	// a departing node can tear down, per spec.md §4.7.
	s.notifyDeployment(*existing)
	if existing.Client != updated.Client || existing.Environment != updated.Environment || existing.Solution != updated.Solution {
		s.notifyDeployment(updated)
	}
	jsonOK(w, deploymentToAPI(updated))
}

func (s *Server) handleDeploymentDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := s.Repo.Deployments.Delete(r.Context(), id)
	if err != nil {
		writeDBErr(w, "deployment.delete", err)
		return
	}
	s.notifyDeployment(*deleted)
	jsonOK(w, deploymentToAPI(*deleted))
}

// parseID extracts the required ?id= query parameter.
func parseID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("id")
	return strconv.ParseInt(raw, 10, 64)
}
