package radio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"rockkit/apimodel"
)

// Api exposes the running player over HTTP so other hosts on the LAN can
// query the title or stop playback.
type Api struct {
	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server

	player  *Player
	station string
	onStop  func()
}

// NewApi builds the control server. apiKey may be empty to disable
// authentication; onStop is invoked after a /api/stop request.
func NewApi(port int64, apiKey string, station string, player *Player, onStop func()) *Api {
	api := Api{
		player:  player,
		station: station,
		onStop:  onStop,
	}

	api.router = mux.NewRouter().StrictSlash(false)

	api.apiRouter = api.router.PathPrefix("/api").Subrouter()
	api.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	api.apiRouter.Use(
		func(handler http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						logrus.Warningf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
						strMessage := fmt.Sprintf("%v", rec)
						GlobalErrorAction(w, strMessage, http.StatusInternalServerError)
					}
				}()

				if apiKey != "" && r.Header.Get("x-api-key") != apiKey {
					ErrorStatusAction(w, r, http.StatusForbidden)
					return
				}

				logrus.Debugf("PATH: %s %s", r.Host, r.URL.Path)

				handler.ServeHTTP(w, r)
			})
		})

	api.apiRouter.HandleFunc("/is_alive",
		func(w http.ResponseWriter, r *http.Request) {
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("GET")
	api.apiRouter.HandleFunc("/title",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(apimodel.TitleMessage{
				Playing: api.player.IsPlaying(),
				Station: api.station,
				Title:   api.player.Title(),
			})
		}).Methods("GET")
	api.apiRouter.HandleFunc("/stop",
		func(w http.ResponseWriter, r *http.Request) {
			api.player.Stop()
			if api.onStop != nil {
				api.onStop()
			}
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("POST")

	// Tell the browser that it's OK for JS to communicate with the server
	headersOk := handlers.AllowedHeaders([]string{"Authorization"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})

	api.server = &http.Server{
		Addr:         ":" + strconv.FormatInt(port, 10),
		Handler:      handlers.CompressHandler(handlers.CORS(originsOk, headersOk, methodsOk)(api.router)),
		ReadTimeout:  time.Second * 240,
		WriteTimeout: time.Second * 240,
		IdleTimeout:  time.Second * 240,
	}

	return &api
}

func (a *Api) Start() {
	logrus.Infof("Start radio api on %s", a.server.Addr)

	go func() {
		err := a.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Error(err)
		}
	}()
}

func (a *Api) Stop() {
	logrus.Infof("Stop radio api")
	a.server.Shutdown(context.Background())
}

// Handler exposes the router for tests.
func (a *Api) Handler() http.Handler {
	return a.router
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	GlobalErrorAction(w, "", status)
}

func GlobalErrorAction(w http.ResponseWriter, message string, status int) {
	apimodel.ErrorMessage{
		ErrStatusCode: status,
		ErrMessage:    message,
	}.Send(w)
}
