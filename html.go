/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

// serveHomePage renders a plain status page listing the open rooms.
func serveHomePage(cfg *Config, gw *Gateway, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		rooms, err := gw.engine.Rooms()
		if err != nil {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		var body strings.Builder

		body.WriteString("<h1>climb</h1>")
		body.WriteString(fmt.Sprintf("<p>Connect a client to <code>%s</code>.</p>", html.EscapeString(cfg.prefix+gamePath+"/ws")))

		if len(rooms) == 0 {
			body.WriteString("<p>No rooms are open.</p>")
		} else {
			body.WriteString("<table><tr><th>Room</th><th>Players</th><th>Status</th><th>Private</th></tr>")
			for _, room := range rooms {
				body.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%d/%d</td><td>%s</td><td>%t</td></tr>",
					html.EscapeString(room.ID), room.Players, room.MaxPlayers, room.Status, room.Private))
			}
			body.WriteString("</table>")
		}

		data := newPage("climb", body.String())

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: ` + cfg.prefix + gamePath + `/`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveJoinPage is the landing page a room's QR code points at.
func serveJoinPage(cfg *Config, gw *Gateway, path string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		roomID := strings.TrimSpace(r.URL.Query().Get("room"))

		res, err := gw.engine.CheckRoom(roomID)
		if err != nil {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if roomID == "" || !res.Exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, newPage("Room not found", "<p>That room does not exist.</p>"))
			return
		}

		var body strings.Builder

		body.WriteString(fmt.Sprintf("<h1>Room %s</h1>", html.EscapeString(roomID)))
		if res.Joinable {
			body.WriteString("<p>This room is open.</p>")
		} else {
			body.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(res.Message)))
		}
		body.WriteString(fmt.Sprintf("<p>Connect a client to <code>%s</code> and send <code>joinSpecificRoom</code> with room <code>%s</code>.</p>",
			html.EscapeString(cfg.prefix+path+"/ws"), html.EscapeString(roomID)))

		written, err := io.WriteString(w, newPage("climb: "+roomID, body.String()))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Join page for room %s (%s) to %s in %s",
			roomID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
