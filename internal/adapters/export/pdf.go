package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"manyame-permits/internal/adapters/persistence/models"
)

var errNoPermitNumber = errors.New("application has no permit number")

var additionalConditions = []string{
	"1. To install flow meters on all boreholes and keep records of water used",
	"2. Water Quality Analysis is to be carried out at most after every 3 months",
	"3. To submit abstraction and water quality records to catchment offices every six (6) months",
	"4. To allow unlimited access to ZINWA and SUB-CATCHMENT COUNCIL staff",
	"5. No cost shall be demanded from the Catchment Council in the event of permit cancellation",
}

// PermitFilename is the download name of a permit, e.g. Permit_WP-2025-0001.pdf
func PermitFilename(app *models.PermitApplication) string {
	number := ""
	if app.PermitNumber != nil {
		number = *app.PermitNumber
	}
	return fmt.Sprintf("Permit_%s.pdf", number)
}

// WritePermitPDF renders the Form GW7B abstraction permit for an approved application
func WritePermitPDF(w io.Writer, app *models.PermitApplication) error {
	if app == nil || app.PermitNumber == nil {
		return errNoPermitNumber
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Groundwater Abstraction Permit "+*app.PermitNumber, true)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	width, _ := pdf.GetPageSize()
	body := width - 24

	line := func(style string, size float64, text string) {
		pdf.SetFont("Helvetica", style, size)
		pdf.MultiCell(body, size*0.5, text, "", "L", false)
		pdf.Ln(1.5)
	}

	line("B", 14, "Form GW7B")
	line("", 12, "TEMPORARY/PROVISIONAL* SPECIFIC GROUNDWATER ABSTRACTION PERMIT")
	line("", 10, "(Section 15 (3) (a) of Water (Permits) Regulations, 2001)")
	pdf.Ln(3)
	line("B", 11, "The MANYAME Catchment Council hereby grants a *Temporary/Provisional General Abstraction Permit to:")
	line("", 10, "Catchment: MANYAME     Sub-Catchment: UPPER MANYAME")
	pdf.Ln(3)

	line("", 10, "1.  Name of Applicant: "+app.ApplicantName)
	line("", 10, "2.  Physical address: "+app.PhysicalAddress)
	line("", 10, "3.  Postal address: ")
	line("", 10, fmt.Sprintf("4.  Number of drilled boreholes: %d        5.  Size of land or property: %s (ha)",
		app.NumBoreholes, formatNumber(app.LandSize)))
	line("", 10, "Total allocated abstraction (m3/annum): "+formatNumber(app.WaterAllocation))
	pdf.Ln(3)

	boreholeTable(pdf, app)
	pdf.Ln(3)

	line("", 9, "a Intended use: irrigation, livestock farming, industrial, mining, urban, national parks, other (specify): "+app.PermitType)
	pdf.Ln(2)
	line("", 10, "This Temporary/Provisional* Specific Abstraction Permit has been recorded in the register as:")
	validUntil := ""
	if app.ValidUntil != nil {
		validUntil = app.ValidUntil.Format("2006-01-02")
	}
	line("B", 10, fmt.Sprintf("Permit No: %s    Valid until: %s", *app.PermitNumber, validUntil))
	pdf.Ln(3)

	line("B", 10, "CONDITIONS")
	line("", 9, "It is illegal to abstract groundwater for any other purpose other than primary purposes without an abstraction permit.")
	pdf.Ln(2)
	line("B", 10, "ADDITIONAL CONDITIONS")
	for _, c := range additionalConditions {
		line("", 9, c)
	}
	pdf.Ln(12)
	line("", 10, "Name (print)            Signature            Official Date Stamp (Catchment Council Chairperson)")

	return pdf.Output(w)
}

func boreholeTable(pdf *fpdf.Fpdf, app *models.PermitApplication) {
	headers := []string{"BH-No.", "BH-No. Allocated", "Grid Reference", "GPS reading", "Intended use a", "Max rate (m3/annum)", "Sample analysis"}
	widths := []float64{16, 26, 26, 40, 28, 28, 22}

	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	row := []string{
		"1",
		"-",
		"-",
		fmt.Sprintf("X: %s  Y: %s", formatNumber(app.GPSX), formatNumber(app.GPSY)),
		app.PermitType,
		"-",
		"-",
	}
	pdf.SetFont("Helvetica", "", 8)
	for i, v := range row {
		pdf.CellFormat(widths[i], 7, v, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
