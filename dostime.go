// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import "time"

// dosEpochYear is the first year representable in MS-DOS date fields.
const dosEpochYear = 1980

// timeToDos converts t to MS-DOS date and time fields. The conversion uses
// UTC; times before 1980 clamp to the epoch and seconds round down to the
// two-second resolution of the format.
func timeToDos(t time.Time) (dosTime, dosDate uint16) {
	t = t.UTC()

	year := t.Year()
	if year < dosEpochYear {
		return 0, 1<<5 | 1
	}

	if year > dosEpochYear+127 {
		year = dosEpochYear + 127
	}

	dosDate = uint16(year-dosEpochYear)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	dosTime = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)

	return dosTime, dosDate
}

// dosToTime converts MS-DOS date and time fields to a UTC time.
func dosToTime(dosDate, dosTime uint16) time.Time {
	year := dosEpochYear + int(dosDate>>9)
	month := time.Month(dosDate >> 5 & 0x0F)
	day := int(dosDate & 0x1F)
	hour := int(dosTime >> 11)
	minute := int(dosTime >> 5 & 0x3F)
	second := int(dosTime&0x1F) * 2

	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}
