package report

import (
	"sort"
	"strconv"

	"github.com/paularlott/gisadmin/internal/portal"
)

var (
	ServicesHeader        = []string{"Service", "Title", "Web Map URL"}
	GroupedServicesHeader = []string{"Service", "Count"}
	AvailabilityHeader    = []string{"Service", "Status", "Result"}
	MonitorHeader         = []string{"Time", "Min Instances", "Max Instances", "Running Instances", "Busy Instances", "Free Instances"}
)

// ServiceUse is one layer of a web map that points at a service.
type ServiceUse struct {
	URL      string
	Title    string
	WebMapID string
}

// Inventory collects the services referenced by web maps and how many web maps use each.
type Inventory struct {
	portalURL string
	uses      []ServiceUse
	counts    map[string]int
}

func NewInventory(portalURL string) *Inventory {
	return &Inventory{portalURL: portalURL, counts: make(map[string]int)}
}

func (inv *Inventory) Add(webMapID string, webMap *portal.WebMap) {
	for _, layer := range webMap.Services() {
		inv.uses = append(inv.uses, ServiceUse{URL: layer.URL, Title: layer.Title, WebMapID: webMapID})
		inv.counts[layer.URL]++
	}
}

func (inv *Inventory) WebMapURL(id string) string {
	return inv.portalURL + "/home/item.html?id=" + id
}

// Rows lists every service use in the order the web maps were added.
func (inv *Inventory) Rows() [][]string {
	rows := make([][]string, 0, len(inv.uses))
	for _, u := range inv.uses {
		rows = append(rows, []string{u.URL, u.Title, inv.WebMapURL(u.WebMapID)})
	}
	return rows
}

// GroupedRows counts the uses of each service, most used first.
func (inv *Inventory) GroupedRows() [][]string {
	services := make([]string, 0, len(inv.counts))
	for s := range inv.counts {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool {
		if inv.counts[services[i]] != inv.counts[services[j]] {
			return inv.counts[services[i]] > inv.counts[services[j]]
		}
		return services[i] < services[j]
	})

	rows := make([][]string, 0, len(services))
	for _, s := range services {
		rows = append(rows, []string{s, strconv.Itoa(inv.counts[s])})
	}
	return rows
}
