package render

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/diegomarin28/KERANA-sub001/internal/model"
)

// Константы размеров и отступов
const (
	imageWidth      = 1400
	imageHeight     = 900
	headerHeight    = 100
	leftLabelsWidth = 80
	legendWidth     = 120
	dayPaddingX     = 8
	slotRadius      = 6.0
	shadowOffset    = 3.0
	daysInWeek      = 7
	hourPadding     = 1
	defaultMinHour  = 8
	defaultMaxHour  = 20
)

// Константы шрифтов
const (
	titleFontSize  = 25.0
	dayFontSize    = 27.0
	hourFontSize   = 18.0
	slotFontSize   = 17.0
	legendFontSize = 12.0
)

var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	textColor      = color.RGBA{80, 85, 90, 220}
	hourLabelColor = color.RGBA{110, 115, 120, 200}
	hourLineColor  = color.NRGBA{150, 150, 150, 255}
	todayBgColor   = color.NRGBA{255, 99, 71, 125}
	evenDayColor   = color.NRGBA{240, 240, 240, 255}
	oddDayColor    = color.NRGBA{220, 220, 220, 255}
	nowLineColor   = color.NRGBA{255, 80, 80, 200}

	slotOpenColor   = color.RGBA{133, 193, 85, 220}
	slotTextColor   = color.RGBA{20, 24, 28, 230}
	slotShadowColor = color.RGBA{0, 0, 0, 20}
	legendColor     = color.RGBA{70, 74, 78, 220}
)

type fontWeight int

const (
	weightRegular fontWeight = iota
	weightBold
)

var (
	fontsOnce sync.Once
	fonts     map[fontWeight]*opentype.Font
)

// Week входные данные картинки: свободные часы одного ментора по датам YYYY-MM-DD
type Week struct {
	Start time.Time
	Hours map[string][]int
	Now   time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

// WeekImage рисует неделю (Пн-Вс), содержащую w.Start, и возвращает PNG
func WeekImage(w Week) ([]byte, error) {
	start := WeekStart(w.Start)
	hours := hourSpan(w.Hours)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / daysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, start)
	drawHourLabels(dc, hours, cellHeight)

	today := model.TruncateDate(w.Now)
	for i := 0; i < daysInWeek; i++ {
		day := start.AddDate(0, 0, i)
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, day.Equal(today))
		drawDayHeader(dc, day, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, h := range w.Hours[day.Format(model.DateLayout)] {
			if h < hours.start || h > hours.end {
				continue
			}
			drawSlot(dc, h, x, y+float64(h-hours.start)*cellHeight, dayWidth, cellHeight)
		}
	}

	if !today.Before(start) && today.Before(start.AddDate(0, 0, daysInWeek)) {
		drawNowLine(dc, w.Now, hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WeekStart понедельник недели, в которую попадает date
func WeekStart(date time.Time) time.Time {
	d := model.TruncateDate(date)
	offset := int(d.Weekday()) - 1
	if d.Weekday() == time.Sunday {
		offset = 6
	}
	return d.AddDate(0, 0, -offset)
}

func hourSpan(days map[string][]int) hourRange {
	minHour, maxHour := 24, -1
	for _, hours := range days {
		for _, h := range hours {
			if h < minHour {
				minHour = h
			}
			if h > maxHour {
				maxHour = h
			}
		}
	}
	if maxHour < 0 {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	start := max(minHour-hourPadding, 0)
	end := min(maxHour+hourPadding, 23)
	return hourRange{start: start, end: end, total: end - start + 1}
}

func setFont(dc *gg.Context, size float64, weight fontWeight) {
	fontsOnce.Do(func() {
		fonts = make(map[fontWeight]*opentype.Font)
		if f, err := opentype.Parse(goregular.TTF); err == nil {
			fonts[weightRegular] = f
		}
		if f, err := opentype.Parse(gobold.TTF); err == nil {
			fonts[weightBold] = f
		}
	})

	if f, ok := fonts[weight]; ok {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

func drawHeader(dc *gg.Context, start time.Time) {
	end := start.AddDate(0, 0, daysInWeek-1)
	title := monthName(start.Month())
	if start.Month() != end.Month() {
		title += " - " + monthName(end.Month())
	}

	setFont(dc, titleFontSize, weightBold)
	dc.SetColor(textColor)
	w, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, w/2, float64(headerHeight)/8+h/2, 0, 0)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	setFont(dc, hourFontSize, weightRegular)
	dc.SetColor(hourLabelColor)
	for i := 0; i < hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hours.start+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	setFont(dc, dayFontSize, weightBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort(date.Weekday()), x+float64(dayWidth)/2, y, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)
	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawSlot(dc *gg.Context, hour int, x, y float64, dayWidth int, cellHeight float64) {
	width := float64(dayWidth) - float64(dayPaddingX*2)
	height := cellHeight - 4

	dc.SetColor(slotShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, y+2+shadowOffset, width, height, slotRadius)
	dc.Fill()

	dc.SetColor(slotOpenColor)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+2, width, height, slotRadius)
	dc.Fill()

	dc.SetColor(darken(slotOpenColor, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+2, width, height, slotRadius)
	dc.Stroke()

	if height > slotFontSize {
		setFont(dc, slotFontSize, weightRegular)
		dc.SetColor(slotTextColor)
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hour), x+dayPaddingX+8, y+2+height/2, 0, 0.35)
	}
}

func drawNowLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	current := float64(now.Hour()) + float64(now.Minute())/60.0
	if current < float64(hours.start) || current > float64(hours.end+1) {
		return
	}

	y := float64(headerHeight) + (current-float64(hours.start))*cellHeight
	dc.SetColor(nowLineColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(float64(leftLabelsWidth), y, float64(leftLabelsWidth+daysInWeek*dayWidth), y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	const boxW, boxH = 20.0, 14.0
	x := float64(leftLabelsWidth + daysInWeek*dayWidth + 10)
	y := float64(imageHeight) - 78.0

	dc.SetColor(slotOpenColor)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 3)
	dc.Fill()

	setFont(dc, legendFontSize, weightRegular)
	dc.SetColor(legendColor)
	dc.DrawStringAnchored("Свободно", x+boxW+8, y+boxH/2+1, 0, 0.2)
}

func darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

var weekdays = map[time.Weekday]string{
	time.Monday:    "Пн",
	time.Tuesday:   "Вт",
	time.Wednesday: "Ср",
	time.Thursday:  "Чт",
	time.Friday:    "Пт",
	time.Saturday:  "Сб",
	time.Sunday:    "Вс",
}

func weekdayShort(d time.Weekday) string {
	return weekdays[d]
}

var months = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

func monthName(m time.Month) string {
	return months[m-1]
}
