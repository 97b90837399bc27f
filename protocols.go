package servex

import (
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
)

// Protocol mounts an auxiliary gRPC service (health, reflection) after all
// routes have registered, so it can advertise the discovered service names.
type Protocol interface {
	Mount(app *App) error
}

// Health returns a protocol serving the gRPC health checking service. Every
// service discovered through App.Handle is reported as serving.
func Health() Protocol { return healthProtocol{} }

type healthProtocol struct{}

func (healthProtocol) Mount(app *App) error {
	checker := grpchealth.NewStaticChecker(app.Services()...)
	path, handler := grpchealth.NewHandler(checker)
	app.mux.Handle(path, handler)
	return nil
}

// Reflection returns a protocol serving gRPC server reflection v1. When the
// server allows legacy clients, the v1alpha surface is mounted as well.
func Reflection() Protocol { return reflectionProtocol{} }

type reflectionProtocol struct{}

func (reflectionProtocol) Mount(app *App) error {
	reflector := grpcreflect.NewStaticReflector(app.Services()...)

	path, handler := grpcreflect.NewHandlerV1(reflector)
	app.mux.Handle(path, handler)

	if app.legacy {
		path, handler = grpcreflect.NewHandlerV1Alpha(reflector)
		app.mux.Handle(path, handler)
	}
	return nil
}
