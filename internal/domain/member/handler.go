package member

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/auth"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/query"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleStaff))
	staff.GET("/members", h.SearchMembers)
	staff.GET("/members/browse", h.Browse)
	staff.GET("/members/group/:code", h.ListGroup)
	staff.GET("/members/:id", h.GetMember)
	staff.POST("/members", h.CreateMember)
	staff.POST("/members/:id/edit", h.BeginEdit)
	staff.DELETE("/members/:id/edit", h.CancelEdit)
	staff.PUT("/members/:id", h.UpdateMember)
	staff.POST("/members/:id/deactivate", h.Deactivate)
	staff.POST("/members/:id/activate", h.Activate)
	staff.GET("/members/:id/certificates", h.ListCertificates)
	staff.POST("/members/:id/certificates", h.AddCertificate)
	staff.GET("/members/:id/attachments", h.ListAttachments)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/members/:id", h.DeleteMember)
}

// httpError maps service errors to responses. Unexpected errors are not
// echoed to the client.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string{
			"rule":    ve.Rule,
			"message": ve.Message,
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "member not found")
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrAlreadyEditing),
		errors.Is(err, ErrNotEditing),
		errors.Is(err, ErrPagingWhileEditing):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func currentUser(c echo.Context) (string, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return uid, nil
}

func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field))
	}
	return &t, nil
}

func parseDatePtr(field string, v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	return parseDate(field, *v)
}

func parseFlag(field, v string) (bool, error) {
	if strings.TrimSpace(v) == "" {
		return false, nil
	}
	b, ok := query.ParseBool(v)
	if !ok {
		return false, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a boolean", field))
	}
	return b, nil
}

func parseOptionalInt(field, v string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", field))
	}
	return &n, nil
}

// filterFromQuery reads the listing filters. Names match the form fields.
func filterFromQuery(c echo.Context) (Filter, error) {
	f := Filter{
		DNI:        strings.TrimSpace(c.QueryParam("dni")),
		CUIL:       strings.TrimSpace(c.QueryParam("cuil")),
		MemberCode: strings.TrimSpace(c.QueryParam("numero_afiliado")),
		LastName:   strings.TrimSpace(c.QueryParam("apellido")),
		GroupCode:  strings.TrimSpace(c.QueryParam("grupo_familiar_codigo")),
	}
	var err error
	if f.CategoryID, err = parseOptionalInt("categoria_id", c.QueryParam("categoria_id")); err != nil {
		return f, err
	}
	if v := c.QueryParam("activo"); v != "" {
		b, ok := query.ParseBool(v)
		if !ok {
			return f, echo.NewHTTPError(http.StatusBadRequest, "activo must be a boolean")
		}
		f.Active = &b
	}
	return f, nil
}

func (h *Handler) SearchMembers(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchMembers(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).
		WithLinks("/api/v1/members", c.QueryParams(), total))
}

// Browse moves through the caller's stored listing. nav is one of search
// (default; applies the query filters), next, prev or current.
func (h *Handler) Browse(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}

	var a Action
	switch nav := c.QueryParam("nav"); nav {
	case "", "search":
		f, err := filterFromQuery(c)
		if err != nil {
			return err
		}
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		if limit > pagination.MaxLimit {
			limit = pagination.MaxLimit
		}
		a = NewSearch{Filter: f, Limit: limit}
	case "next":
		a = NextPage{}
	case "prev":
		a = PrevPage{}
	case "current":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "nav must be one of search, next, prev, current")
	}

	res, err := h.svc.Browse(c.Request().Context(), uid, a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetMember(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetMember(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListGroup(c echo.Context) error {
	items, err := h.svc.ListGroup(c.Request().Context(), c.Param("code"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

// CreateMember reads the multipart registration form. Files go in the
// student_proof and disability_proof parts.
func (h *Handler) CreateMember(c echo.Context) error {
	sub, closeFiles, err := submissionFromForm(c)
	if err != nil {
		return err
	}
	defer closeFiles()

	res, err := h.svc.CreateMember(c.Request().Context(), sub)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func submissionFromForm(c echo.Context) (*Submission, func(), error) {
	var opened []multipart.File
	closeFiles := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	fail := func(err error) (*Submission, func(), error) {
		closeFiles()
		return nil, func() {}, err
	}

	s := &Submission{
		FirstName:  c.FormValue("nombre"),
		LastName:   c.FormValue("apellido"),
		DNI:        c.FormValue("dni"),
		CUIL:       c.FormValue("cuil"),
		MemberCode: c.FormValue("numero_afiliado"),
		Sex:        c.FormValue("sexo"),
		Phone:      c.FormValue("telefono"),
		Email:      c.FormValue("email"),
		Address:    c.FormValue("domicilio"),
	}

	var err error
	if v := strings.TrimSpace(c.FormValue("parentesco_id")); v != "" {
		if s.RelationshipID, err = strconv.Atoi(v); err != nil {
			return fail(echo.NewHTTPError(http.StatusBadRequest, "parentesco_id must be an integer"))
		}
	}
	if s.CategoryID, err = parseOptionalInt("categoria_id", c.FormValue("categoria_id")); err != nil {
		return fail(err)
	}

	dates := []struct {
		field string
		dst   **time.Time
	}{
		{"fechaNacimiento", &s.BirthDate},
		{"fecha_ultimo_pago_cuota", &s.LastPaymentDate},
		{"plan_materno_desde", &s.MaternityFrom},
		{"plan_materno_hasta", &s.MaternityTo},
		{"cud_fecha_emision", &s.Certificate.EmissionDate},
		{"cud_fecha_vencimiento", &s.Certificate.ExpirationDate},
	}
	for _, d := range dates {
		if *d.dst, err = parseDate(d.field, c.FormValue(d.field)); err != nil {
			return fail(err)
		}
	}

	flags := []struct {
		field string
		dst   *bool
	}{
		{"estudios", &s.Studying},
		{"discapacidad", &s.HasDisability},
		{"cud_sin_vencimiento", &s.Certificate.NoExpiration},
	}
	for _, fl := range flags {
		if *fl.dst, err = parseFlag(fl.field, c.FormValue(fl.field)); err != nil {
			return fail(err)
		}
	}
	s.Certificate.Level = DisabilityLevel(strings.TrimSpace(c.FormValue("cud_nivel")))

	files := []struct {
		field string
		dst   **Upload
	}{
		{"student_proof", &s.StudentProof},
		{"disability_proof", &s.DisabilityProof},
	}
	for _, f := range files {
		fh, err := c.FormFile(f.field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			return fail(echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("could not read %s", f.field)))
		}
		src, err := fh.Open()
		if err != nil {
			return fail(echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("could not read %s", f.field)))
		}
		opened = append(opened, src)
		*f.dst = &Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     src,
		}
	}
	return s, closeFiles, nil
}

func (h *Handler) BeginEdit(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.BeginEdit(c.Request().Context(), uid, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) CancelEdit(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelEdit(c.Request().Context(), uid, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// updateRequest is the inline-edit body. Dates use YYYY-MM-DD.
type updateRequest struct {
	FirstName       *string `json:"nombre"`
	LastName        *string `json:"apellido"`
	DNI             *string `json:"dni"`
	CUIL            *string `json:"cuil"`
	MemberCode      *string `json:"numero_afiliado"`
	RelationshipID  *int    `json:"parentesco_id"`
	CategoryID      *int    `json:"categoria_id"`
	Sex             *string `json:"sexo"`
	BirthDate       *string `json:"fechaNacimiento"`
	Studying        *bool   `json:"estudios"`
	LastPaymentDate *string `json:"fecha_ultimo_pago_cuota"`
	MaternityFrom   *string `json:"plan_materno_desde"`
	MaternityTo     *string `json:"plan_materno_hasta"`
	Phone           *string `json:"telefono"`
	Email           *string `json:"email"`
	Address         *string `json:"domicilio"`
}

func (r updateRequest) patch() (Patch, error) {
	p := Patch{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		DNI:            r.DNI,
		CUIL:           r.CUIL,
		MemberCode:     r.MemberCode,
		RelationshipID: r.RelationshipID,
		CategoryID:     r.CategoryID,
		Sex:            r.Sex,
		Studying:       r.Studying,
		Phone:          r.Phone,
		Email:          r.Email,
		Address:        r.Address,
	}
	var err error
	if p.BirthDate, err = parseDatePtr("fechaNacimiento", r.BirthDate); err != nil {
		return p, err
	}
	if p.LastPaymentDate, err = parseDatePtr("fecha_ultimo_pago_cuota", r.LastPaymentDate); err != nil {
		return p, err
	}
	if p.MaternityFrom, err = parseDatePtr("plan_materno_desde", r.MaternityFrom); err != nil {
		return p, err
	}
	if p.MaternityTo, err = parseDatePtr("plan_materno_hasta", r.MaternityTo); err != nil {
		return p, err
	}
	return p, nil
}

func (h *Handler) UpdateMember(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := req.patch()
	if err != nil {
		return err
	}
	v, err := h.svc.UpdateMember(c.Request().Context(), uid, id, p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Deactivate(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *Handler) Activate(c echo.Context) error {
	return h.setActive(c, true)
}

func (h *Handler) setActive(c echo.Context, active bool) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.SetActive(c.Request().Context(), id, active); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteMember(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMember(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCertificates(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListCertificates(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

type certificateRequest struct {
	Level          string  `json:"nivel"`
	EmissionDate   string  `json:"fecha_emision"`
	ExpirationDate *string `json:"fecha_vencimiento"`
	NoExpiration   bool    `json:"sin_vencimiento"`
}

func (h *Handler) AddCertificate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req certificateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in := CertificateInput{Level: DisabilityLevel(strings.TrimSpace(req.Level)), NoExpiration: req.NoExpiration}
	if in.EmissionDate, err = parseDate("fecha_emision", req.EmissionDate); err != nil {
		return err
	}
	if in.ExpirationDate, err = parseDatePtr("fecha_vencimiento", req.ExpirationDate); err != nil {
		return err
	}

	cert, err := h.svc.AddCertificate(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cert)
}

func (h *Handler) ListAttachments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAttachments(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}
