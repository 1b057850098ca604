package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/medrounds/med-consult-api/api"
	"github.com/medrounds/med-consult-api/api/scheduler"
	"github.com/medrounds/med-consult-api/config"
	"github.com/medrounds/med-consult-api/consultation"
	"github.com/medrounds/med-consult-api/databases"
	"github.com/medrounds/med-consult-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Hub       *LiveHub
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	consultDB := databases.NewConsultationDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)

	a.Hub = NewLiveHub()
	repo := consultation.NewRepository(consultDB)
	orchestrator := consultation.NewOrchestrator(repo, consultation.NewOpenAIGenerator(&a.Config))
	orchestrator.Publisher = a.Hub
	orchestrator.Notifier = Mailer{UDB: userDB}

	u := User{DB: userDB}
	c := Consultation{Repo: repo, Orchestrator: orchestrator, Hub: a.Hub}
	live := Live{Hub: a.Hub, DB: consultDB}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/ws-token", http.HandlerFunc(api.CreateWSToken)).Methods("GET")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")

	apiCreate.Handle("/case", api.Middleware(http.HandlerFunc(c.CreateCaseHandler))).Methods("POST")
	apiCreate.Handle("/cases", api.Middleware(http.HandlerFunc(c.CasesByOwnerHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}", api.Middleware(http.HandlerFunc(c.CaseByIDHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}/join", api.Middleware(http.HandlerFunc(c.JoinCaseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/messages", api.Middleware(http.HandlerFunc(c.MessagesHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}/messages", api.Middleware(http.HandlerFunc(c.CreateMessageHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/consultation/start", api.Middleware(http.HandlerFunc(c.StartConsultationHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/consultation/next", api.Middleware(http.HandlerFunc(c.NextSpecialistHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/consultation/summary", api.Middleware(http.HandlerFunc(c.SummaryHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/consultation/run", api.Middleware(http.HandlerFunc(c.RunConsultationHandler))).Methods("POST")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	// the websocket authenticates with a short-lived token instead of the middleware
	r.HandleFunc("/ws/case/{case_id}", live.HandleCaseWebSocket)

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("med-consult-api has connected to the database")

	// initialize api router
	a.initializeRoutes()

	// keepalive sweeps for the live case feeds
	a.Scheduler = scheduler.NewScheduler(a.Hub)
	a.Scheduler.Start()

	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
