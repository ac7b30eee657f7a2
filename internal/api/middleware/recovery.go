package middleware

import (
	"net/http"
	"runtime/debug"

	"arbscan/pkg/utils"
)

// Recovery перехватывает панику в handlers и возвращает 500
// вместо падения всего сервера
//
// Stack trace уходит в лог; клиенту деталей не отдаём.
func Recovery(log *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic in handler",
						utils.String("path", r.URL.Path),
						utils.Any("panic", err),
						utils.String("stack", string(debug.Stack())),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
