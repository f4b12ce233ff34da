package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/db"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/query"
)

const uniqueViolation = "23505"

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

const memberFrom = `afiliados a
	JOIN parentescos p ON p.id = a.parentesco_id
	LEFT JOIN categorias c ON c.id = a.categoria_id`

const memberCols = `a.id, a.nombre, a.apellido, a.dni, a.cuil, a.numero_afiliado, a.grupo_familiar_codigo,
	a.parentesco_id, p.nombre, a.categoria_id, COALESCE(c.nombre, ''), a.sexo, a."fechaNacimiento",
	a.estudios, a.discapacidad, a.fecha_ultimo_pago_cuota, a.plan_materno_desde, a.plan_materno_hasta,
	a.telefono, a.email, a.domicilio, a.activo, a.created_at, a.updated_at`

var memberFilters = map[string]query.FilterConfig{
	"dni":                   {Type: query.FilterExact, Column: "a.dni"},
	"cuil":                  {Type: query.FilterExact, Column: "a.cuil"},
	"numero_afiliado":       {Type: query.FilterExact, Column: "a.numero_afiliado"},
	"apellido":              {Type: query.FilterPrefix, Column: "a.apellido"},
	"grupo_familiar_codigo": {Type: query.FilterExact, Column: "a.grupo_familiar_codigo"},
	"categoria_id":          {Type: query.FilterInt, Column: "a.categoria_id"},
	"activo":                {Type: query.FilterBool, Column: "a.activo"},
}

// memberFilterOrder fixes placeholder numbering.
var memberFilterOrder = []string{
	"dni", "cuil", "numero_afiliado", "apellido", "grupo_familiar_codigo", "categoria_id", "activo",
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.DNI, &m.CUIL, &m.MemberCode, &m.GroupCode,
		&m.RelationshipID, &m.RelationshipName, &m.CategoryID, &m.CategoryName, &m.Sex, &m.BirthDate,
		&m.Studying, &m.HasDisability, &m.LastPaymentDate, &m.MaternityFrom, &m.MaternityTo,
		&m.Phone, &m.Email, &m.Address, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *memberRepoPG) Create(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO afiliados (id, nombre, apellido, dni, cuil, numero_afiliado, grupo_familiar_codigo,
			parentesco_id, categoria_id, sexo, "fechaNacimiento", estudios, discapacidad,
			fecha_ultimo_pago_cuota, plan_materno_desde, plan_materno_hasta,
			telefono, email, domicilio, activo)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING created_at, updated_at`,
		m.ID, m.FirstName, m.LastName, m.DNI, m.CUIL, m.MemberCode, m.GroupCode,
		m.RelationshipID, m.CategoryID, m.Sex, m.BirthDate, m.Studying, m.HasDisability,
		m.LastPaymentDate, m.MaternityFrom, m.MaternityTo,
		m.Phone, m.Email, m.Address, m.Active).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert member", err)
	}
	return nil
}

func (r *memberRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := scanMember(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+memberCols+` FROM `+memberFrom+` WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", id, err)
	}
	return m, nil
}

func (r *memberRepoPG) Update(ctx context.Context, m *Member) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE afiliados SET nombre=$2, apellido=$3, dni=$4, cuil=$5, numero_afiliado=$6,
			grupo_familiar_codigo=$7, parentesco_id=$8, categoria_id=$9, sexo=$10, "fechaNacimiento"=$11,
			estudios=$12, discapacidad=$13, fecha_ultimo_pago_cuota=$14, plan_materno_desde=$15,
			plan_materno_hasta=$16, telefono=$17, email=$18, domicilio=$19, activo=$20, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.FirstName, m.LastName, m.DNI, m.CUIL, m.MemberCode,
		m.GroupCode, m.RelationshipID, m.CategoryID, m.Sex, m.BirthDate,
		m.Studying, m.HasDisability, m.LastPaymentDate, m.MaternityFrom,
		m.MaternityTo, m.Phone, m.Email, m.Address, m.Active).
		Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return mapWriteErr("update member", err)
	}
	return nil
}

func (r *memberRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE afiliados SET activo = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set member active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *memberRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM afiliados WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *memberRepoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Member, int, error) {
	qb := query.New(memberFrom, memberCols)
	qb.ApplyAll(f.params(), memberFilterOrder, memberFilters)
	qb.OrderBy("a.apellido, a.nombre, a.numero_afiliado")

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	rows, err := conn.Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search members: %w", err)
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *memberRepoPG) ListByGroup(ctx context.Context, groupCode string) ([]*Member, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+memberCols+` FROM `+memberFrom+` WHERE a.grupo_familiar_codigo = $1 ORDER BY a.numero_afiliado`,
		groupCode)
	if err != nil {
		return nil, fmt.Errorf("list family group: %w", err)
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *memberRepoPG) exists(ctx context.Context, column, value string) (bool, error) {
	var found bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM afiliados WHERE `+column+` = $1)`, value).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", column, err)
	}
	return found, nil
}

func (r *memberRepoPG) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	return r.exists(ctx, "dni", dni)
}

func (r *memberRepoPG) ExistsByMemberCode(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "numero_afiliado", code)
}

func (r *memberRepoPG) ExistsByCUIL(ctx context.Context, cuil string) (bool, error) {
	return r.exists(ctx, "cuil", cuil)
}

const certCols = `id, seq, afiliado_id, nivel, fecha_emision, fecha_vencimiento, sin_vencimiento, created_at`

func scanCertificate(row pgx.Row) (*DisabilityCertificate, error) {
	var c DisabilityCertificate
	err := row.Scan(&c.ID, &c.Seq, &c.MemberID, &c.Level, &c.EmissionDate, &c.ExpirationDate,
		&c.NoExpiration, &c.CreatedAt)
	return &c, err
}

func (r *memberRepoPG) AddCertificate(ctx context.Context, c *DisabilityCertificate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO cud (id, afiliado_id, nivel, fecha_emision, fecha_vencimiento, sin_vencimiento)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING seq, created_at`,
		c.ID, c.MemberID, c.Level, c.EmissionDate, c.ExpirationDate, c.NoExpiration).
		Scan(&c.Seq, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (r *memberRepoPG) ListCertificates(ctx context.Context, memberID uuid.UUID) ([]*DisabilityCertificate, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+certCols+` FROM cud WHERE afiliado_id = $1 ORDER BY seq`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []*DisabilityCertificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *memberRepoPG) LatestCertificates(ctx context.Context, memberIDs []uuid.UUID) (map[uuid.UUID]*DisabilityCertificate, error) {
	out := make(map[uuid.UUID]*DisabilityCertificate, len(memberIDs))
	if len(memberIDs) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT DISTINCT ON (afiliado_id) `+certCols+`
		FROM cud WHERE afiliado_id = ANY($1)
		ORDER BY afiliado_id, seq DESC`, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("latest certificates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		out[c.MemberID] = c
	}
	return out, rows.Err()
}

func (r *memberRepoPG) AddAttachment(ctx context.Context, a *Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO adjuntos (id, afiliado_id, tipo, nombre_archivo, content_type, url)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		a.ID, a.MemberID, a.Kind, a.FileName, a.ContentType, a.URL).
		Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (r *memberRepoPG) ListAttachments(ctx context.Context, memberID uuid.UUID) ([]*Attachment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, afiliado_id, tipo, nombre_archivo, content_type, url, created_at
		FROM adjuntos WHERE afiliado_id = $1 ORDER BY created_at`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var out []*Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.MemberID, &a.Kind, &a.FileName, &a.ContentType, &a.URL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
