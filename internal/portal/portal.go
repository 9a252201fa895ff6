package portal

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/rs/zerolog/log"
)

const (
	ProviderBuiltIn    = "arcgis"
	ProviderEnterprise = "webadaptor"

	ExportFormatFileGeodatabase = "File Geodatabase"
)

// Portal wraps the sharing and portaladmin APIs of one portal.
type Portal struct {
	client *arcrest.Client
}

func New(client *arcrest.Client) *Portal {
	return &Portal{client: client}
}

func (p *Portal) Client() *arcrest.Client {
	return p.client
}

// URL is the portal address without a trailing slash.
func (p *Portal) URL() string {
	return strings.TrimSuffix(p.client.BaseURL(), "/")
}

type NewUser struct {
	Username    string
	Password    string
	Email       string
	FullName    string
	Role        string
	Description string
	Provider    string
}

type Self struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Item struct {
	ID           string   `json:"id"`
	Owner        string   `json:"owner"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	TypeKeywords []string `json:"typeKeywords"`
	URL          string   `json:"url"`
	Size         int64    `json:"size"`
	Created      int64    `json:"created"`
	Modified     int64    `json:"modified"`
}

func (i *Item) HasKeyword(keyword string) bool {
	for _, k := range i.TypeKeywords {
		if strings.EqualFold(k, keyword) {
			return true
		}
	}
	return false
}

type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type User struct {
	Username      string  `json:"username"`
	FullName      string  `json:"fullName"`
	Email         string  `json:"email"`
	Level         string  `json:"level"`
	Role          string  `json:"role"`
	Created       int64   `json:"created"`
	LastLogin     int64   `json:"lastLogin"`
	StorageUsage  int64   `json:"storageUsage"`
	Groups        []Group `json:"groups"`
	Disabled      bool    `json:"disabled"`
	Provider      string  `json:"provider"`
	IdpUsername   string  `json:"idpUsername"`
	Description   string  `json:"description"`
	UserLicenseID string  `json:"userLicenseTypeId"`
}

type Layer struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type WebMap struct {
	OperationalLayers []Layer `json:"operationalLayers"`
	BaseMap           struct {
		Title         string  `json:"title"`
		BaseMapLayers []Layer `json:"baseMapLayers"`
	} `json:"baseMap"`
}

// Services lists the operational then basemap layers that reference a service, basemap layers are titled Basemap.
func (w *WebMap) Services() []Layer {
	var layers []Layer
	for _, l := range w.OperationalLayers {
		if l.URL != "" {
			layers = append(layers, l)
		}
	}
	for _, l := range w.BaseMap.BaseMapLayers {
		if l.URL != "" {
			l.Title = "Basemap"
			layers = append(layers, l)
		}
	}
	return layers
}

// ServiceURLs lists the URLs of Services.
func (w *WebMap) ServiceURLs() []string {
	layers := w.Services()
	urls := make([]string, len(layers))
	for i, l := range layers {
		urls[i] = l.URL
	}
	return urls
}

type ExportJob struct {
	JobID        string `json:"jobId"`
	ExportItemID string `json:"exportItemId"`
	Type         string `json:"type"`
}

type JobStatus struct {
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage"`
	ItemID        string `json:"itemId"`
}

type ItemRegistration struct {
	URL             string
	Type            string
	Title           string
	Snippet         string
	Description     string
	Tags            string
	Thumbnail       string
	ServiceUsername string
	ServicePassword string
}

func (p *Portal) CreateUser(ctx context.Context, user NewUser) error {
	provider := user.Provider
	if provider == "" {
		provider = ProviderBuiltIn
	}

	params := arcrest.Params{
		"username":    user.Username,
		"password":    user.Password,
		"email":       user.Email,
		"fullname":    user.FullName,
		"role":        user.Role,
		"description": user.Description,
		"provider":    provider,
	}

	return p.client.Call(ctx, "portaladmin/security/users/createUser", params, nil)
}

func (p *Portal) Self(ctx context.Context) (*Self, error) {
	self := &Self{}
	if err := p.client.Get(ctx, "sharing/rest/portals/self", nil, self); err != nil {
		return nil, err
	}
	return self, nil
}

// SearchItems lazily pages through the items matching query.
func (p *Portal) SearchItems(ctx context.Context, query string, sortField string, pageSize int) iter.Seq2[Item, error] {
	params := arcrest.Params{"q": query}
	if sortField != "" {
		params["sortField"] = sortField
	}
	return arcrest.Items[Item](p.client.Paginate(ctx, "sharing/rest/search", params, pageSize, "results"))
}

func (p *Portal) SearchUsers(ctx context.Context, pageSize int) iter.Seq2[User, error] {
	params := arcrest.Params{"sortField": "username", "sortOrder": "asc"}
	return arcrest.Items[User](p.client.Paginate(ctx, "sharing/rest/portals/self/users", params, pageSize, "users"))
}

func (p *Portal) SearchGroups(ctx context.Context, orgID string, pageSize int) iter.Seq2[Group, error] {
	params := arcrest.Params{"q": fmt.Sprintf("orgid:%s", orgID), "sortField": "title", "sortOrder": "asc"}
	return arcrest.Items[Group](p.client.Paginate(ctx, "sharing/rest/community/groups", params, pageSize, "results"))
}

// UserGroups returns the groups username belongs to.
func (p *Portal) UserGroups(ctx context.Context, username string) ([]Group, error) {
	user := &User{}
	if err := p.client.Get(ctx, "sharing/rest/community/users/"+url.PathEscape(username), nil, user); err != nil {
		return nil, err
	}
	return user.Groups, nil
}

// UserItems returns every item owned by username across the root and all folders.
func (p *Portal) UserItems(ctx context.Context, username string) ([]Item, error) {
	var root struct {
		Folders []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"folders"`
	}

	base := "sharing/rest/content/users/" + url.PathEscape(username)
	if err := p.client.Get(ctx, base, arcrest.Params{"num": "1"}, &root); err != nil {
		return nil, err
	}

	items, err := arcrest.Collect(arcrest.Items[Item](p.client.Paginate(ctx, base, nil, arcrest.DefaultPageSize, "items")))
	if err != nil {
		return nil, err
	}

	for _, folder := range root.Folders {
		folderItems, err := arcrest.Collect(arcrest.Items[Item](p.client.Paginate(ctx, base+"/"+url.PathEscape(folder.ID), nil, arcrest.DefaultPageSize, "items")))
		if err != nil {
			return nil, fmt.Errorf("folder %s: %w", folder.Title, err)
		}
		items = append(items, folderItems...)
	}

	return items, nil
}

func (p *Portal) Item(ctx context.Context, id string) (*Item, error) {
	item := &Item{}
	if err := p.client.Get(ctx, "sharing/rest/content/items/"+url.PathEscape(id), nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ItemData decodes the JSON data of an item such as a web map into out.
func (p *Portal) ItemData(ctx context.Context, id string, out any) error {
	return p.client.Get(ctx, "sharing/rest/content/items/"+url.PathEscape(id)+"/data", nil, out)
}

func (p *Portal) WebMap(ctx context.Context, id string) (*WebMap, error) {
	webMap := &WebMap{}
	if err := p.ItemData(ctx, id, webMap); err != nil {
		return nil, err
	}
	return webMap, nil
}

func (p *Portal) Export(ctx context.Context, owner string, itemID string, format string) (*ExportJob, error) {
	if format == "" {
		format = ExportFormatFileGeodatabase
	}

	job := &ExportJob{}
	params := arcrest.Params{
		"itemId":       itemID,
		"exportFormat": format,
	}
	if err := p.client.Call(ctx, "sharing/rest/content/users/"+url.PathEscape(owner)+"/export", params, job); err != nil {
		return nil, err
	}

	if job.ExportItemID == "" {
		return nil, fmt.Errorf("export of %s returned no item id", itemID)
	}

	return job, nil
}

func (p *Portal) ExportStatus(ctx context.Context, owner string, job *ExportJob) (*JobStatus, error) {
	status := &JobStatus{}
	params := arcrest.Params{
		"jobType": "export",
		"jobId":   job.JobID,
	}
	endpoint := "sharing/rest/content/users/" + url.PathEscape(owner) + "/items/" + url.PathEscape(job.ExportItemID) + "/status"
	if err := p.client.Get(ctx, endpoint, params, status); err != nil {
		return nil, err
	}
	return status, nil
}

// WaitForExport polls the export job until it completes, a failed job is an error.
func (p *Portal) WaitForExport(ctx context.Context, owner string, job *ExportJob, interval time.Duration, maxWait time.Duration) error {
	return arcrest.WaitForJob(ctx, interval, maxWait, func(ctx context.Context) (bool, error) {
		status, err := p.ExportStatus(ctx, owner, job)
		if err != nil {
			return false, err
		}

		switch strings.ToLower(status.Status) {
		case "completed":
			return true, nil
		case "failed":
			return false, fmt.Errorf("export of %s failed: %s", job.ExportItemID, status.StatusMessage)
		default:
			log.Debug().Str("item", job.ExportItemID).Str("status", status.Status).Msg("portal: waiting for export")
			return false, nil
		}
	})
}

func (p *Portal) DeleteItem(ctx context.Context, owner string, itemID string) error {
	endpoint := "sharing/rest/content/users/" + url.PathEscape(owner) + "/items/" + url.PathEscape(itemID) + "/delete"
	return p.client.Call(ctx, endpoint, nil, nil)
}

// DownloadItem streams the data of an item to destination.
func (p *Portal) DownloadItem(ctx context.Context, id string, destination string, chunkSize int) (int64, error) {
	return p.client.DownloadChunked(ctx, "sharing/rest/content/items/"+url.PathEscape(id)+"/data", nil, destination, chunkSize)
}

// RegisterItem adds a service as an item owned by owner and returns the new item id.
func (p *Portal) RegisterItem(ctx context.Context, owner string, reg ItemRegistration) (string, error) {
	params := arcrest.Params{
		"url":         reg.URL,
		"type":        reg.Type,
		"title":       reg.Title,
		"snippet":     reg.Snippet,
		"description": reg.Description,
		"tags":        reg.Tags,
	}
	if reg.Thumbnail != "" {
		params["thumbnail"] = reg.Thumbnail
	}
	if reg.ServiceUsername != "" {
		params["serviceUsername"] = reg.ServiceUsername
		params["servicePassword"] = reg.ServicePassword
	}

	var resp struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	if err := p.client.Call(ctx, "sharing/rest/content/users/"+url.PathEscape(owner)+"/addItem", params, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("addItem returned no item id")
	}

	return resp.ID, nil
}

// ShareItem shares an item with everyone, the organisation, or nobody when access is private.
func (p *Portal) ShareItem(ctx context.Context, owner string, itemID string, access string) error {
	params := arcrest.Params{"everyone": "false", "org": "false"}
	switch strings.ToLower(access) {
	case "public":
		params["everyone"] = "true"
		params["org"] = "true"
	case "org":
		params["org"] = "true"
	}

	endpoint := "sharing/rest/content/users/" + url.PathEscape(owner) + "/items/" + url.PathEscape(itemID) + "/share"
	return p.client.Call(ctx, endpoint, params, nil)
}
