package middleware

import (
	"net/http"
	"strings"
)

const (
	allowMethods  = "GET, POST, OPTIONS"
	allowHeaders  = "Accept, Authorization, Content-Type, X-Request-Id"
	exposeHeaders = "X-Message-Id, X-Stream-Complete, X-Stream-Error, X-Vercel-AI-Data-Stream"
)

// Origins 是允许跨域访问的来源列表，"*" 表示任意来源。
type Origins []string

// Allowed 判断来源是否在白名单中。
func (o Origins) Allowed(origin string) bool {
	for _, allowed := range o {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (o Origins) wildcard() bool {
	for _, allowed := range o {
		if allowed == "*" {
			return true
		}
	}
	return false
}

// CORS 返回按白名单设置跨域响应头的中间件，并直接应答预检请求。
func CORS(origins Origins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && origins.Allowed(origin) {
				h := w.Header()
				if origins.wildcard() {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
