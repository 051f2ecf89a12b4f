package server

import (
	"encoding/json"
	"net/http"

	"github.com/theinhumaneme/hikari/api"
	"github.com/theinhumaneme/hikari/internal/db"
)

func stackToAPI(r db.StackRow) api.Stack {
	return api.Stack{
		ID:            r.ID,
		DeploymentID:  r.DeploymentID,
		StackName:     r.StackName,
		Filename:      r.Filename,
		HomeDirectory: r.HomeDirectory,
	}
}

func stackFromAPI(s api.Stack) db.StackRow {
	return db.StackRow{
		ID:            s.ID,
		DeploymentID:  s.DeploymentID,
		StackName:     s.StackName,
		Filename:      s.Filename,
		HomeDirectory: s.HomeDirectory,
	}
}

func (s *Server) notifyOwningDeployment(r *http.Request, deploymentID int64) {
	dep, err := s.Repo.Deployments.FindByID(r.Context(), deploymentID)
	if err != nil {
		s.Log.Error("notify: owning deployment lookup failed", "error", err)
		return
	}
	s.notifyDeployment(*dep)
}

func (s *Server) handleStackList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Repo.Stacks.FindAll(r.Context())
	if err != nil {
		writeDBErr(w, "stacks.list", err)
		return
	}
	out := make([]api.Stack, len(rows))
	for i, row := range rows {
		out[i] = stackToAPI(row)
	}
	jsonOK(w, out)
}

func (s *Server) handleStackGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	row, err := s.Repo.Stacks.FindByID(r.Context(), id)
	if err != nil {
		writeDBErr(w, "stack.get", err)
		return
	}
	jsonOK(w, stackToAPI(*row))
}

func (s *Server) handleStackCreate(w http.ResponseWriter, r *http.Request) {
	var in api.Stack
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID != 0 {
		jsonErr(w, http.StatusBadRequest, "id must not be set on create")
		return
	}
	exists, err := s.Repo.Deployments.Exists(r.Context(), in.DeploymentID)
	if err != nil {
		writeDBErr(w, "stack.create", err)
		return
	}
	if !exists {
		jsonErr(w, http.StatusNotFound, "deployment_id: parent deployment not found")
		return
	}

	row, err := s.Repo.Stacks.Create(r.Context(), stackFromAPI(in))
	if err != nil {
		writeDBErr(w, "stack.create", err)
		return
	}
	s.notifyOwningDeployment(r, row.DeploymentID)
	jsonOK(w, stackToAPI(*row))
}

func (s *Server) handleStackUpdate(w http.ResponseWriter, r *http.Request) {
	var in api.Stack
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID == 0 {
		jsonErr(w, http.StatusBadRequest, "id is required")
		return
	}
	existing, err := s.Repo.Stacks.FindByID(r.Context(), in.ID)
	if err != nil {
		writeDBErr(w, "stack.update", err)
		return
	}
	if stackToAPI(*existing) == in {
		jsonStatus(w, http.StatusNotModified, nil)
		return
	}

	updated := stackFromAPI(in)
	if _, err := s.Repo.Stacks.Update(r.Context(), updated); err != nil {
		writeDBErr(w, "stack.update", err)
		return
	}
	s.notifyOwningDeployment(r, updated.DeploymentID)
	jsonOK(w, stackToAPI(updated))
}

func (s *Server) handleStackDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := s.Repo.Stacks.Delete(r.Context(), id)
	if err != nil {
		writeDBErr(w, "stack.delete", err)
		return
	}
	s.notifyOwningDeployment(r, deleted.DeploymentID)
	jsonOK(w, stackToAPI(*deleted))
}
