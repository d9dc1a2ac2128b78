package conversation

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/catalog"
	"github.com/wolfman30/clinic-intake/internal/session"
)

// replies renders every outbound text from the catalog and clinic facts.
type replies struct {
	catalog *catalog.Catalog
	clinic  catalog.Clinic
}

const replyPrompt = "*Reply with option number:*"

func (r replies) welcomeNew() string {
	return fmt.Sprintf(`👋 Welcome to %s!

I'm DocTime, your virtual assistant. I can help you book appointments with our doctors.

Are you booking for yourself or someone else?

%s
1. 👤 For Myself
2. 👥 For Someone Else
3. ❓ I Have Questions`, r.clinic.Name, replyPrompt)
}

func (r replies) welcomeReturning(name string) string {
	greeting := "👋 Welcome back to " + r.clinic.Name + "!"
	if name != "" {
		greeting = fmt.Sprintf("👋 Welcome back to %s, %s!", r.clinic.Name, name)
	}
	return fmt.Sprintf(`%s

I see you've visited us before. Would you like to:

%s
1. 📅 Book New Appointment
2. 🔄 Follow-up with Previous Doctor
3. 📋 View Past Appointments
4. 👨‍⚕️ Browse Our Doctors`, greeting, replyPrompt)
}

func (r replies) welcomeSingle(appt appointments.Appointment) string {
	return fmt.Sprintf(`👋 Welcome back to %s!

📅 **Your Upcoming Appointment:**
👩‍⚕️ %s - %s
📅 %s at ⏰ %s
📍 %s

What would you like to do?

%s
1. ✅ Appointment Details
2. 🔄 Reschedule
3. ❌ Cancel Appointment
4. 🗺️ Get Directions
5. 📅 Book Another Appointment`,
		r.clinic.Name, appt.DoctorName, appt.Specialty, dayText(appt), appt.Time, r.clinic.Name, replyPrompt)
}

// welcomeMultiple lists every upcoming appointment; options 1..n manage
// one of them, n+1 books another and n+2 sends directions.
func (r replies) welcomeMultiple(appts []appointments.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👋 Welcome back to %s!\n\n📅 **Your Upcoming Appointments:**\n\n", r.clinic.Name)
	for i, a := range appts {
		fmt.Fprintf(&b, "%d. %s - %s\n📅 %s at ⏰ %s\n\n", i+1, a.DoctorName, a.Specialty, dayText(a), a.Time)
	}
	b.WriteString("What would you like to do?\n\n" + replyPrompt + "\n")
	for i := range appts {
		fmt.Fprintf(&b, "%d. 📋 Manage Appointment %d\n", i+1, i+1)
	}
	fmt.Fprintf(&b, "%d. 📅 Book New Appointment\n", len(appts)+1)
	fmt.Fprintf(&b, "%d. 🗺️ Get Directions", len(appts)+2)
	return b.String()
}

func (r replies) welcomeRetry() string {
	return `Please reply with a valid option number. Type "menu" to see all options again.`
}

func (r replies) appointmentDetails(appt appointments.Appointment) string {
	room := ""
	if r.clinic.Room != "" {
		room = "\n" + r.clinic.Room
	}
	return fmt.Sprintf(`📋 **Detailed Appointment Information**

🆔 **Booking ID:** %s
👨‍⚕️ **Doctor:** %s
🏥 **Specialty:** %s
📅 **Date:** %s
⏰ **Time:** %s
💰 **Fee:** ₹%d

📍 **Clinic Details:**
%s%s

📋 **Pre-visit Checklist:**
✅ Arrive 15 minutes early
✅ Bring photo ID proof
✅ Previous medical reports
✅ List of current medications

📞 **Contact:** %s

*Need to modify?* Type "reschedule" or "cancel"`,
		appt.ID, appt.DoctorName, appt.Specialty, dayText(appt), appt.Time, appt.Fee,
		strings.Join(r.addressShort(), "\n"), room, r.clinic.Phone)
}

func (r replies) patientDetailsPrompt() string {
	return `Please provide the patient's details:

👤 Full Name:
📞 Phone Number:
🎂 Age:
👥 Relationship to you:

Type each detail or send them together.`
}

func (r replies) concernMenu(header string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	b.WriteString("What brings you to the clinic today?\n\nYou can describe your symptoms or choose from common concerns:\n\n")
	b.WriteString(replyPrompt + "\n")
	for _, opt := range catalog.ConcernMenu() {
		fmt.Fprintf(&b, "%d. %s %s\n", opt.Number, opt.Emoji, opt.Label)
	}
	b.WriteString("\n*Or simply describe your symptoms in your own words.*")
	return b.String()
}

func (r replies) concernRetry() string {
	return r.concernMenu("Please choose an option from 1 to 11, or describe your symptoms.")
}

func (r replies) notSure() string {
	return fmt.Sprintf(`No worries! Our General Medicine doctors can assess any health concern and refer you to specialists if needed.

Shall I book you with a General Medicine doctor?

%s
1. ✅ Yes, General Medicine
2. 📞 Talk to Staff First
3. ⬅️ Tell Me My Symptoms`, replyPrompt)
}

func (r replies) notSureRetry() string {
	return "Please reply 1, 2 or 3.\n\n" + r.notSure()
}

func (r replies) recommendation(d catalog.Doctor) string {
	return fmt.Sprintf(`Based on your concern, I recommend:

👨‍⚕️ **%s** - %s
⭐ %.1f/5 | 🩺 %d years
💰 Consultation Fee: ₹%d

📅 **Next Available Slots:**
%s

Which slot works for you?

*Reply with slot number (1, 2, or 3):*`,
		d.Name, d.SpecialtyName(), d.Rating, d.Experience, d.Fee, slotLines(d))
}

func (r replies) doctorSlots(d catalog.Doctor) string {
	return fmt.Sprintf(`👨‍⚕️ **%s** - %s
⭐ %.1f/5 | 🩺 %d years
💰 Consultation Fee: ₹%d

📅 **Available Slots:**
%s

Select your preferred time:

*Reply with slot number (1, 2, or 3):*`,
		d.Name, d.SpecialtyName(), d.Rating, d.Experience, d.Fee, slotLines(d))
}

func (r replies) slotRetry() string {
	return "Please select a valid slot number (1, 2, or 3)"
}

func (r replies) doctorList() string {
	var b strings.Builder
	b.WriteString("👨‍⚕️ **Our Expert Doctors**\n")
	n := 0
	for _, s := range r.catalog.Specialties() {
		fmt.Fprintf(&b, "\n%s **%s**\n", specialtyEmoji(s), strings.ToUpper(s.DisplayName()))
		for _, d := range r.catalog.BySpecialty(s) {
			n++
			fmt.Fprintf(&b, "%d. %s - %d+ years exp ⭐%.1f\n", n, d.Name, d.Experience, d.Rating)
		}
	}
	b.WriteString("\n*Reply with the doctor's number, or type:*\n\"Book [Doctor Name]\"\n\nExample: \"Book Dr. Smith\" 📱")
	return b.String()
}

func (r replies) doctorRetry() string {
	return "Sorry, I couldn't find that doctor. Please reply with a number from the list or a doctor's name.\n\n" + r.doctorList()
}

func (r replies) confirmation(sess *session.Session) string {
	d := sess.Data
	patient := d.PatientName
	if patient == "" {
		patient = "You"
	}
	return fmt.Sprintf(`✅ **Confirm Your Appointment**

👨‍⚕️ Doctor: %s - %s
📅 Date & Time: %s at %s (%s)
👤 Patient: %s
📞 Contact: %s
💰 Consultation Fee: ₹%d

📍 **%s**
%s

Confirm booking?

%s
1. ✅ Confirm & Book
2. ✏️ Edit Details
3. ❌ Cancel Booking`,
		d.DoctorName, d.Specialty, d.SlotLabel, d.SlotTime, d.SlotDate, patient, sess.UserID, d.Fee,
		r.clinic.Name, r.addressLine(), replyPrompt)
}

func (r replies) confirmationRetry(sess *session.Session) string {
	return "Please reply 1 to confirm, 2 to edit or 3 to cancel.\n\n" + r.confirmation(sess)
}

func (r replies) bookingDropped() string {
	return `❌ Booking cancelled. Type "menu" to see other options.`
}

func (r replies) booked(appt appointments.Appointment, created bool) string {
	var b strings.Builder
	if created {
		b.WriteString("🎉 **Appointment Booked Successfully!**\n\n")
	} else {
		b.WriteString("ℹ️ **You already have this appointment booked.**\n\n")
	}
	fmt.Fprintf(&b, `📋 **Confirmation Details:**
🆔 Booking ID: %s
👨‍⚕️ %s - %s
📅 %s at %s

📱 **What's Next:**
- SMS confirmation sent to %s
- Add to calendar reminder
- Arrive 15 minutes early
- Bring valid ID and previous reports
`, appt.ID, appt.DoctorName, appt.Specialty, dayText(appt), appt.Time, appt.Phone)
	if appt.PaymentLink != "" {
		fmt.Fprintf(&b, "\n💳 **Payment Link:** %s\n", appt.PaymentLink)
	}
	b.WriteString("\nNeed anything else?\n\n" + postBookingOptions())
	return b.String()
}

func postBookingOptions() string {
	return replyPrompt + `
1. 📅 Add to Calendar
2. 🗺️ Get Directions
3. 📋 Pre-visit Instructions
4. 📅 Book Another Appointment
5. ✅ All Done`
}

func (r replies) postBookingRetry() string {
	return "❓ Please choose a valid option:\n\n" + postBookingOptions() + "\n\nOr type \"help\" for assistance."
}

func (r replies) calendar(appt appointments.Appointment) string {
	return fmt.Sprintf(`📅 **Add to Calendar**

Click this link to add your appointment:
%s

Or manually add:
📋 Event: Appointment with %s
📅 Date: %s
⏰ Time: %s
📍 Location: %s

Need anything else?

%s`, r.calendarLink(appt), appt.DoctorName, dayText(appt), appt.Time, r.addressLine(), postBookingOptions())
}

// calendarLink builds a Google Calendar template link for a one hour
// visit. A zero ScheduledFor leaves the dates out.
func (r replies) calendarLink(appt appointments.Appointment) string {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", "Appointment with "+appt.DoctorName)
	if !appt.ScheduledFor.IsZero() {
		const layout = "20060102T150405Z"
		start := appt.ScheduledFor.UTC()
		q.Set("dates", start.Format(layout)+"/"+start.Add(time.Hour).Format(layout))
	}
	q.Set("details", fmt.Sprintf("Appointment at %s\nID: %s", r.clinic.Name, appt.ID))
	q.Set("location", r.addressLine())
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

func (r replies) directions() string {
	return fmt.Sprintf(`🗺️ **%s Location**

📍 **Address:**
%s

🚗 **How to Reach:**
• Metro: Noida Sector 18 Metro Station (500m walk)
• By Car: Parking available
• Auto/Cab: Show this address to driver

📞 **Contact:** %s

🕐 **Clinic Hours:**
%s

📱 **Google Maps:** %s`,
		r.clinic.Name, strings.Join(r.clinic.AddressLines, "\n"), r.clinic.Phone, r.hoursText(), r.clinic.MapsURL)
}

func (r replies) instructions(appt appointments.Appointment) string {
	online := ""
	if appt.PaymentLink != "" {
		online = "\n• Online: " + appt.PaymentLink
	}
	return fmt.Sprintf(`📋 **Pre-visit Instructions**

⏰ **Arrival:**
• Arrive 15 minutes early for check-in
• Report to reception with booking ID %s

📄 **Documents to Bring:**
• Valid Photo ID (Aadhar/PAN/License)
• Previous medical reports (if any)
• Insurance card (if applicable)
• List of current medications

💳 **Payment Options:**
• Cash, Card, UPI accepted at clinic%s

🚫 **Before Visit:**
• Avoid heavy meals 2 hours before
• No alcohol 24 hours before
• Avoid strong perfumes

📞 Questions? Call %s

Need anything else?

%s`, appt.ID, online, r.clinic.Phone, postBookingOptions())
}

func (r replies) thankYou(appt appointments.Appointment) string {
	return fmt.Sprintf(`✅ **Thank you for choosing %s!**

Your appointment is confirmed:
🆔 ID: %s
👨‍⚕️ %s
📅 %s at %s

📱 We'll send you a reminder before your appointment.

For any queries: %s
Or message "hi" anytime for assistance.

Take care! 🌟`, r.clinic.Name, appt.ID, appt.DoctorName, dayText(appt), appt.Time, r.clinic.Phone)
}

func (r replies) rescheduleMenu(appt appointments.Appointment, d catalog.Doctor) string {
	return fmt.Sprintf(`🔄 I'll help you reschedule your appointment.

📅 **Current Appointment:**
👨‍⚕️ %s - %s
📅 %s at ⏰ %s

📅 **Available Slots with %s:**
%s
4. ⬅️ Keep Current Time

*Reply with option number (1-4):*`,
		appt.DoctorName, appt.Specialty, dayText(appt), appt.Time, d.Name, slotLines(d))
}

func (r replies) rescheduled(before, after appointments.Appointment) string {
	return fmt.Sprintf(`✅ **Appointment Rescheduled!**

**Old Time:** ❌ %s at %s

**New Appointment:** ✅ Confirmed
🆔 %s
👨‍⚕️ %s
📅 %s at ⏰ %s

📱 Updated confirmation SMS sent!`,
		dayText(before), before.Time, after.ID, after.DoctorName, dayText(after), after.Time)
}

func (r replies) cancelPrompt(appt appointments.Appointment) string {
	return fmt.Sprintf(`⚠️ **Cancel Appointment**

👨‍⚕️ %s - %s
📅 %s at ⏰ %s

**Cancellation Policy:**
%s

Are you sure you want to cancel?

%s
1. ❌ Yes, Cancel
2. 🔄 Reschedule Instead
3. ⬅️ Keep Appointment`,
		appt.DoctorName, appt.Specialty, dayText(appt), appt.Time, strings.Join(r.clinic.CancellationNote, "\n"), replyPrompt)
}

func (r replies) cancelRetry() string {
	return `Please select a valid option:

1. ❌ Yes, Cancel
2. 🔄 Reschedule Instead
3. ⬅️ Keep Appointment`
}

func (r replies) rescheduleRetry() string {
	return "Please reply with a slot number (1, 2 or 3), or 4 to keep your current time."
}

func (r replies) cancelled(appt appointments.Appointment, feeNote string) string {
	return fmt.Sprintf(`✅ **Appointment Cancelled**

📅 %s - %s at %s
💰 %s

**Refund Process:**
• Refund will be processed in 3-5 business days
• Amount will be credited to original payment method
• You'll receive SMS confirmation of refund

Would you like to book a new appointment? Type "book"

Or need assistance? Type "help"`, appt.DoctorName, dayText(appt), appt.Time, feeNote)
}

func (r replies) kept(appt appointments.Appointment) string {
	return fmt.Sprintf(`✅ **Appointment Kept**

📅 Your appointment remains confirmed:
👨‍⚕️ %s - %s
📅 %s at ⏰ %s
📍 %s

📋 **Reminders:**
• Arrive 15 minutes early
• Bring valid ID
• Bring previous medical reports

See you at the clinic! 🏥`, appt.DoctorName, appt.Specialty, dayText(appt), appt.Time, r.clinic.Name)
}

func (r replies) noActiveAppointment() string {
	return `📋 You don't have any upcoming appointments. Would you like to book a new one? Type "book".`
}

func (r replies) emergency() string {
	c := r.clinic
	return fmt.Sprintf(`🚨 **MEDICAL EMERGENCY DETECTED** 🚨

**IMMEDIATE ACTIONS:**
📞 Call Emergency: %s (India) or 911
🏥 Nearest Hospital: %s
📍 Address: %s
📞 Hospital: %s

**Our Staff is Being Notified**
📱 %s Emergency: %s

**If Life-Threatening:**
• Call %s immediately
• Don't wait for our response
• Go to nearest emergency room

Stay safe! Our team will contact you shortly.`,
		c.EmergencyNumber, c.NearestHospital, c.HospitalAddress, c.HospitalPhone, c.Name, c.Phone, c.EmergencyNumber)
}

func (r replies) escalation(reason string) string {
	return fmt.Sprintf(`📞 **Connecting you to our clinic staff...**

Your conversation history has been shared for better assistance.

*Estimated wait time: 2-3 minutes*
*Staff available: %s*

Reason: %s

A staff member will contact you shortly.`, r.hoursText(), reason)
}

func (r replies) mainMenu(name string) string {
	hello := "Hi! How can I help you today?"
	if name != "" {
		hello = fmt.Sprintf("Hi %s! How can I help you today?", name)
	}
	return fmt.Sprintf(`🏥 **%s - Main Menu**

%s

**APPOINTMENT SERVICES:**
• Type "book" - Book New Appointment
• Type "status" - Check Appointment Status
• Type "reschedule" - Reschedule Appointment
• Type "cancel" - Cancel Appointment

**INFORMATION & SUPPORT:**
• Type "doctors" - View Doctor Profiles
• Type "directions" - Get Clinic Location
• Type "fees" - View Consultation Charges
• Type "help" - Talk to Staff

**QUICK COMMANDS:**
• Type "today" - Today's appointments
• Type "tomorrow" - Tomorrow's availability
• Type "history" - Past appointments

**Emergency:** Type "emergency" for immediate assistance

Just type any command above or say "hi" to start fresh! 🌟`, r.clinic.Name, hello)
}

func (r replies) status(name string, upcoming []appointments.Appointment) string {
	if len(upcoming) == 0 {
		return r.noActiveAppointment()
	}
	var b strings.Builder
	title := "📋 **Your Appointment Status**"
	if name != "" {
		title = "📋 **Your Appointment Status - " + name + "**"
	}
	b.WriteString(title + "\n\n**UPCOMING APPOINTMENTS:**\n")
	for _, a := range upcoming {
		fmt.Fprintf(&b, "\n📅 **%s, %s**\n👨‍⚕️ %s - %s\n🆔 %s\n", dayText(a), a.Time, a.DoctorName, a.Specialty, a.ID)
		if a.PaymentStatus == appointments.PaymentPaid {
			b.WriteString("💳 Paid\n")
		}
	}
	if r.clinic.Room != "" {
		fmt.Fprintf(&b, "\n📍 %s\n", r.clinic.Room)
	}
	b.WriteString("\n*Need to reschedule?* Type \"reschedule\"\n*Need to cancel?* Type \"cancel\"")
	return b.String()
}

func (r replies) today(mine []appointments.Appointment, open bool, now time.Time) string {
	var b strings.Builder
	b.WriteString("📅 **Today's Schedule**\n\n**Your Appointments:**\n")
	if len(mine) == 0 {
		b.WriteString("No appointments today.\n")
	}
	for _, a := range mine {
		fmt.Fprintf(&b, "✅ %s - %s (%s)\n", a.Time, a.DoctorName, a.Status)
	}
	b.WriteString("\n**Clinic Status:**\n")
	hours := r.clinic.Hours.ForDay(now.In(r.location()).Weekday())
	switch {
	case open && hours != nil:
		fmt.Fprintf(&b, "🟢 Open: %s - %s\n", clock(hours.Open), clock(hours.Close))
	case hours != nil:
		fmt.Fprintf(&b, "🔴 Closed now. Today's hours: %s - %s\n", clock(hours.Open), clock(hours.Close))
	default:
		b.WriteString("🔴 Closed today\n")
	}
	b.WriteString("\nNeed to book? Type \"book\"\nQuestions? Type \"help\"")
	return b.String()
}

func (r replies) tomorrow() string {
	var b strings.Builder
	b.WriteString("📅 **Tomorrow's Availability**\n")
	for _, s := range r.catalog.Specialties() {
		fmt.Fprintf(&b, "\n%s **%s**\n", specialtyEmoji(s), strings.ToUpper(s.DisplayName()))
		for _, d := range r.catalog.BySpecialty(s) {
			var times []string
			for _, slot := range d.Slots {
				if slot.DayOffset == 1 {
					times = append(times, slot.Time)
				}
			}
			if len(times) == 0 {
				continue
			}
			fmt.Fprintf(&b, "• %s: %s\n", d.Name, strings.Join(times, ", "))
		}
	}
	b.WriteString("\nReady to book? Type \"book\"\nNeed a specific time? Type \"help\"")
	return b.String()
}

func (r replies) history(name string, all []appointments.Appointment) string {
	if len(all) == 0 {
		return `📋 We don't have any visits on record for this number yet. Type "book" to schedule one.`
	}
	var b strings.Builder
	title := "📋 **Appointment History**"
	if name != "" {
		title = "📋 **Appointment History - " + name + "**"
	}
	b.WriteString(title + "\n")
	for _, a := range all {
		mark := "✅"
		if !a.Active() {
			mark = "❌"
		}
		fmt.Fprintf(&b, "\n%s **%s %s**\n👨‍⚕️ %s - %s\n💰 Fee: ₹%d\n", mark, dayText(a), a.Time, a.DoctorName, a.Specialty, a.Fee)
	}
	b.WriteString("\n*Follow-up needed?* Type \"book\"")
	return b.String()
}

func (r replies) fees() string {
	var b strings.Builder
	b.WriteString("💰 **Consultation Charges**\n\n")
	for _, s := range r.catalog.Specialties() {
		fmt.Fprintf(&b, "%s **%s:** %s\n", specialtyEmoji(s), s.DisplayName(), r.catalog.FeeFor(s))
	}
	b.WriteString(`
💳 **Payment Options:**
• Cash at clinic
• UPI/Card payment
• Online payment link
• Insurance accepted

Ready to book? Type "book"`)
	return b.String()
}

func (r replies) apology() string {
	return fmt.Sprintf(`😔 Sorry, something went wrong on our side. Please try again, or type "help" to reach our staff. You can also call us on %s.`, r.clinic.Phone)
}

func (r replies) addressShort() []string {
	if len(r.clinic.AddressLines) > 2 {
		return r.clinic.AddressLines[:2]
	}
	return r.clinic.AddressLines
}

func (r replies) addressLine() string {
	return strings.Join(r.addressShort(), ", ")
}

func (r replies) location() *time.Location {
	if r.clinic.Location == nil {
		return time.UTC
	}
	return r.clinic.Location
}

// hoursText groups consecutive weekdays that share opening hours:
// "Mon-Sat: 9:00 AM - 8:00 PM".
func (r replies) hoursText() string {
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	var lines []string
	for i := 0; i < len(days); {
		h := r.clinic.Hours.ForDay(days[i])
		j := i + 1
		for j < len(days) && sameHours(h, r.clinic.Hours.ForDay(days[j])) {
			j++
		}
		label := days[i].String()[:3]
		if j-i > 1 {
			label += "-" + days[j-1].String()[:3]
		}
		if h == nil {
			lines = append(lines, label+": Closed")
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s - %s", label, clock(h.Open), clock(h.Close)))
		}
		i = j
	}
	return strings.Join(lines, "\n")
}

func sameHours(a, b *catalog.DayHours) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// clock turns "09:00" into "9:00 AM".
func clock(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

func slotLines(d catalog.Doctor) string {
	lines := make([]string, 0, len(d.Slots))
	for i, s := range d.Slots {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, s))
	}
	return strings.Join(lines, "\n")
}

// dayText prefers the calendar date and falls back to the slot label.
func dayText(a appointments.Appointment) string {
	switch {
	case a.Date != "" && a.SlotLabel != "":
		return a.SlotLabel + " (" + a.Date + ")"
	case a.Date != "":
		return a.Date
	default:
		return a.SlotLabel
	}
}

func specialtyEmoji(s catalog.Specialty) string {
	switch s {
	case catalog.SpecialtyCardiology:
		return "❤️"
	case catalog.SpecialtyOrthopedics:
		return "🦴"
	case catalog.SpecialtyDental:
		return "🦷"
	default:
		return "🩺"
	}
}
