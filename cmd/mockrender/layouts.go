package main

import (
	"html/template"
	"io"
	"strings"
	"time"
)

// layout is one markup variant of the results page together with the
// latency and failure profile of the service serving it.
type layout struct {
	name        string
	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64
	// dropPrice removes the price from every nth offer; zero keeps all.
	dropPrice int
	tmpl      *template.Template
}

// cards matches the primary result-card markup.
var cards = layout{
	name:        "cards",
	minLatency:  50 * time.Millisecond,
	maxLatency:  200 * time.Millisecond,
	failureRate: 0.1,
	tmpl: template.Must(template.New("cards").Parse(`<html><body>
<div data-ved="root"><ul class="Rk10dc">
{{range .}}<li class="pIav2d">
  <div class="sSHqwe tPgKwe">{{.Airline}}</div>
  <span class="mv1WYe">{{.Departure}}</span><span class="mv1WYe">{{.Arrival}}</span>
  <div class="gvkrdb AdWm1c">{{.Duration}}</div>
  <div class="EfT7Ae AdWm1c"><span>{{.Stops}}</span></div>
  {{if .Price}}<div class="YMlIz FpEdX"><span>{{.Price}}</span></div>{{end}}
</li>
{{end}}</ul></div>
</body></html>`)),
}

// rows uses the alternate class names of the compact list view.
var rows = layout{
	name:        "rows",
	minLatency:  80 * time.Millisecond,
	maxLatency:  300 * time.Millisecond,
	failureRate: 0.05,
	tmpl: template.Must(template.New("rows").Parse(`<html><body>
<div data-ved="root">
{{range .}}<div class="yR1fYc">
  <span class="Ir0Voe">{{.Airline}}</span>
  <span class="zxVSec">{{.Departure}}</span> &ndash; <span class="zxVSec">{{.Arrival}}</span>
  <span class="Ak5kof">{{.Duration}}</span>
  <span class="BbR8Ec">{{.Stops}}</span>
  {{range .StopCities}}<span class="stop-city">{{.}}</span>{{end}}
  {{if .Price}}<span class="flight-price">{{.Price}}</span>{{end}}
</div>
{{end}}</div>
</body></html>`)),
}

// list is the bare fallback markup; every third offer lacks a price.
var list = layout{
	name:        "list",
	minLatency:  60 * time.Millisecond,
	maxLatency:  240 * time.Millisecond,
	failureRate: 0.1,
	dropPrice:   3,
	tmpl: template.Must(template.New("list").Parse(`<html><body>
<div data-ved="root"><ol>
{{range .}}<li data-ved="offer">
  <b class="airline-name">{{.Airline}}</b>
  <i class="stops">{{.Stops}}</i>
  {{if .Price}}<em class="price">{{.Price}}</em>{{end}}
</li>
{{end}}</ol></div>
</body></html>`)),
}

var layouts = map[string]layout{
	cards.name: cards,
	rows.name:  rows,
	list.name:  list,
}

func layoutNames() string {
	return strings.Join([]string{cards.name, rows.name, list.name}, ", ")
}

func (l layout) render(w io.Writer, offers []offer) error {
	if l.dropPrice > 0 {
		for i := range offers {
			if (i+1)%l.dropPrice == 0 {
				offers[i].Price = ""
			}
		}
	}
	return l.tmpl.Execute(w, offers)
}
