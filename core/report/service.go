package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/finance"
	"github.com/uzielB/backend-sistemagem-sub000/core/student"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName       = "Pagos"
	keyPrefix       = "reportes/pagos/"
)

var nowFunc = time.Now // mockable

// Row is one payment line of the payments report.
type Row struct {
	Matricula   string
	StudentName string
	Concept     string
	Installment *int
	Amount      float64
	DueDate     time.Time
	Status      finance.PaymentStatus
	PaidDate    *time.Time
	Method      string
}

type column struct {
	header string
	width  float64
	value  func(r Row) interface{}
}

var columns = []column{
	{"Matrícula", 12, func(r Row) interface{} { return r.Matricula }},
	{"Estudiante", 36, func(r Row) interface{} { return r.StudentName }},
	{"Concepto", 16, func(r Row) interface{} { return r.Concept }},
	{"No. pago", 9, func(r Row) interface{} {
		if r.Installment == nil {
			return ""
		}
		return *r.Installment
	}},
	{"Monto", 14, func(r Row) interface{} { return r.Amount }},
	{"Vencimiento", 13, func(r Row) interface{} { return r.DueDate.Format(core.DateLayout) }},
	{"Estatus", 12, func(r Row) interface{} { return string(r.Status) }},
	{"Fecha de pago", 14, func(r Row) interface{} {
		if r.PaidDate == nil {
			return ""
		}
		return r.PaidDate.Format(core.DateLayout)
	}},
	{"Método", 15, func(r Row) interface{} { return r.Method }},
}

// File is a generated report stored in the file store.
type File struct {
	Key      string    `json:"clave"`
	FileName string    `json:"nombreArchivo"`
	URL      string    `json:"url"`
	Rows     int       `json:"registros"`
	Expires  time.Time `json:"expira"`
}

type (
	Service interface {
		PaymentRows(ctx context.Context, filter *finance.PaymentFilter) ([]Row, error)
		// PaymentsXLSX renders the payments report as an XLSX workbook.
		PaymentsXLSX(ctx context.Context, filter *finance.PaymentFilter) (fileName string, data []byte, err error)
		// ExportPayments stores the payments report and returns a temporary download URL.
		ExportPayments(ctx context.Context, filter *finance.PaymentFilter) (File, error)
	}

	service struct {
		finance  finance.Service
		students student.Service
		store    core.FileStore
		expiry   time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(financeSvc finance.Service, studentSvc student.Service, store core.FileStore, conf *core.Config) Service {
	return &service{
		finance:  financeSvc,
		students: studentSvc,
		store:    store,
		expiry:   conf.Storage.URLExpiry,
	}
}

func (svc *service) PaymentRows(ctx context.Context, filter *finance.PaymentFilter) ([]Row, error) {
	payments, err := svc.finance.QueryPayments(ctx, filter, []core.DBOrdering{
		{Field: "due_date", Ascending: true},
		{Field: "id", Ascending: true},
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	concepts, err := svc.finance.QueryConcepts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying payment concepts")
	}
	conceptNames := make(map[int]string, len(concepts))
	for _, c := range concepts {
		conceptNames[c.ID] = c.Name
	}

	students, err := svc.students.Query(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byID := make(map[int]student.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	rows := make([]Row, 0, len(payments))
	for _, p := range payments {
		st := byID[p.StudentID]
		row := Row{
			Matricula:   st.Matricula,
			StudentName: st.FullName(),
			Concept:     conceptNames[p.ConceptID],
			Installment: p.InstallmentNumber,
			Amount:      p.FinalAmount.InexactFloat64(),
			DueDate:     p.DueDate,
			Status:      p.Status,
			PaidDate:    p.PaidDate,
		}
		if p.Method != nil {
			row.Method = string(*p.Method)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (svc *service) PaymentsXLSX(ctx context.Context, filter *finance.PaymentFilter) (string, []byte, error) {
	rows, err := svc.PaymentRows(ctx, filter)
	if err != nil {
		return "", nil, err
	}
	data, err := BuildXLSX(rows)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("pagos_%s.xlsx", nowFunc().Format("20060102_150405")), data, nil
}

func (svc *service) ExportPayments(ctx context.Context, filter *finance.PaymentFilter) (File, error) {
	rows, err := svc.PaymentRows(ctx, filter)
	if err != nil {
		return File{}, err
	}
	data, err := BuildXLSX(rows)
	if err != nil {
		return File{}, err
	}

	now := nowFunc()
	file := File{
		Key:      keyPrefix + uuid.NewString() + ".xlsx",
		FileName: fmt.Sprintf("pagos_%s.xlsx", now.Format("20060102_150405")),
		Rows:     len(rows),
		Expires:  now.Add(svc.expiry).UTC(),
	}
	if err := svc.store.Put(ctx, file.Key, data, ContentTypeXLSX); err != nil {
		return File{}, errors.Wrap(err, "storing report")
	}
	if file.URL, err = svc.store.PresignedURL(ctx, file.Key, file.FileName, svc.expiry); err != nil {
		return File{}, errors.Wrap(err, "presigning report URL")
	}
	return file, nil
}

// BuildXLSX writes rows to a single-sheet workbook, one header row first.
func BuildXLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, errors.Wrap(err, "creating amount style")
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col.header); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, name, name, col.width)
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	_ = f.SetCellStyle(sheetName, "A1", last, bold)

	for r, row := range rows {
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, col.value(row)); err != nil {
				return nil, errors.Wrap(err, "writing row")
			}
		}
	}
	if len(rows) > 0 {
		_ = f.SetCellStyle(sheetName, "E2", fmt.Sprintf("E%d", len(rows)+1), money)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}
