package handler

import (
	"fmt"
	"net/http"
)

// HomeHandler answers GET / with a pointer to the API.
func HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Object detection server. GET /metadata for model details, POST an image to /predict?model=yolov3-tiny (field \"file\").\n")
	}
}
