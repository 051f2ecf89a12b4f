package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"reflect"

	"github.com/theinhumaneme/hikari/api"
	"github.com/theinhumaneme/hikari/internal/db"
)

func containerToAPI(r db.ContainerRow) api.Container {
	return api.Container{
		ID:             r.ID,
		StackID:        r.StackID,
		ServiceName:    r.ServiceName,
		ContainerName:  r.ContainerName,
		Image:          r.Image,
		Restart:        r.Restart,
		User:           r.User.String,
		StdinOpen:      r.StdinOpen,
		TTY:            r.TTY,
		Command:        r.Command.String,
		WorkingDir:     r.WorkingDir.String,
		PullPolicy:     r.PullPolicy.String,
		Ports:          []string(r.Ports),
		Volumes:        []string(r.Volumes),
		Environment:    []string(r.Environment),
		MemReservation: r.MemReservation.String,
		MemLimit:       r.MemLimit.String,
		OOMKillDisable: r.OOMKillDisable,
		Privileged:     r.Privileged,
	}
}

func containerFromAPI(c api.Container) db.ContainerRow {
	return db.ContainerRow{
		ID:             c.ID,
		StackID:        c.StackID,
		ServiceName:    c.ServiceName,
		ContainerName:  c.ContainerName,
		Image:          c.Image,
		Restart:        c.Restart,
		User:           nullString(c.User),
		StdinOpen:      c.StdinOpen,
		TTY:            c.TTY,
		Command:        nullString(c.Command),
		WorkingDir:     nullString(c.WorkingDir),
		PullPolicy:     nullString(c.PullPolicy),
		Ports:          c.Ports,
		Volumes:        c.Volumes,
		Environment:    c.Environment,
		MemReservation: nullString(c.MemReservation),
		MemLimit:       nullString(c.MemLimit),
		OOMKillDisable: c.OOMKillDisable,
		Privileged:     c.Privileged,
	}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func (s *Server) notifyOwningStack(r *http.Request, stackID int64) {
	dep, err := s.Repo.Stacks.DeploymentMetadata(r.Context(), stackID, s.Repo.Deployments)
	if err != nil {
		s.Log.Error("notify: owning stack lookup failed", "error", err)
		return
	}
	s.notifyDeployment(*dep)
}

func (s *Server) handleContainerList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Repo.Containers.FindAll(r.Context())
	if err != nil {
		writeDBErr(w, "containers.list", err)
		return
	}
	out := make([]api.Container, len(rows))
	for i, row := range rows {
		out[i] = containerToAPI(row)
	}
	jsonOK(w, out)
}

func (s *Server) handleContainerGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	row, err := s.Repo.Containers.FindByID(r.Context(), id)
	if err != nil {
		writeDBErr(w, "container.get", err)
		return
	}
	jsonOK(w, containerToAPI(*row))
}

func (s *Server) handleContainerCreate(w http.ResponseWriter, r *http.Request) {
	var in api.Container
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID != 0 {
		jsonErr(w, http.StatusBadRequest, "id must not be set on create")
		return
	}
	exists, err := s.Repo.Stacks.Exists(r.Context(), in.StackID)
	if err != nil {
		writeDBErr(w, "container.create", err)
		return
	}
	if !exists {
		jsonErr(w, http.StatusNotFound, "stack_id: parent stack not found")
		return
	}

	row, err := s.Repo.Containers.Create(r.Context(), containerFromAPI(in))
	if err != nil {
		writeDBErr(w, "container.create", err)
		return
	}
	s.notifyOwningStack(r, row.StackID)
	jsonOK(w, containerToAPI(*row))
}

func (s *Server) handleContainerUpdate(w http.ResponseWriter, r *http.Request) {
	var in api.Container
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ID == 0 {
		jsonErr(w, http.StatusBadRequest, "id is required")
		return
	}
	existing, err := s.Repo.Containers.FindByID(r.Context(), in.ID)
	if err != nil {
		writeDBErr(w, "container.update", err)
		return
	}
	if reflect.DeepEqual(containerToAPI(*existing), in) {
		jsonStatus(w, http.StatusNotModified, nil)
		return
	}

	updated := containerFromAPI(in)
	if _, err := s.Repo.Containers.Update(r.Context(), updated); err != nil {
		writeDBErr(w, "container.update", err)
		return
	}
	s.notifyOwningStack(r, updated.StackID)
	jsonOK(w, containerToAPI(updated))
}

func (s *Server) handleContainerDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted, err := s.Repo.Containers.Delete(r.Context(), id)
	if err != nil {
		writeDBErr(w, "container.delete", err)
		return
	}
	s.notifyOwningStack(r, deleted.StackID)
	jsonOK(w, containerToAPI(*deleted))
}
