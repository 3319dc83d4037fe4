package endpoint

import (
	"net/http"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/userdata"
)

type userPayload struct {
	Password string           `json:"password"`
	Config   *userdata.Config `json:"config"`
}

type userCreateData struct {
	UUID string `json:"uuid"`
}

func handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if !isMethod(r, http.MethodPost) {
		errorMethodNotAllowed(r).Send(w, r)
		return
	}

	payload := &userPayload{}
	if err := readRequestBodyJSON(r, payload); err != nil {
		sendError(w, r, err)
		return
	}
	if payload.Password == "" || payload.Config == nil {
		sendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing password or config"))
		return
	}

	uuid, err := userdata.Create(payload.Config, payload.Password)
	sendResponse(w, r, 201, &userCreateData{UUID: uuid}, err)
}

func handleUserGet(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	password := r.URL.Query().Get("password")
	if uuid == "" || password == "" {
		sendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing uuid or password"))
		return
	}

	conf, err := userdata.Resolve(uuid, password)
	sendResponse(w, r, 200, conf, err)
}

func handleUserSync(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	payload := &userPayload{}
	if err := readRequestBodyJSON(r, payload); err != nil {
		sendError(w, r, err)
		return
	}
	if uuid == "" || payload.Password == "" || payload.Config == nil {
		sendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing uuid, password or config"))
		return
	}

	err := userdata.Sync(uuid, payload.Password, payload.Config)
	sendResponse(w, r, 200, struct{}{}, err)
}

func handleUser(w http.ResponseWriter, r *http.Request) {
	switch {
	case isMethod(r, http.MethodGet):
		handleUserGet(w, r)
	case isMethod(r, http.MethodPut):
		handleUserSync(w, r)
	default:
		errorMethodNotAllowed(r).Send(w, r)
	}
}
