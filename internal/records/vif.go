package records

// Description names the quantity a record carries.
type Description string

const (
	DescEnergy                   Description = "energy"
	DescVolume                   Description = "volume"
	DescMass                     Description = "mass"
	DescOnTime                   Description = "on_time"
	DescOperatingTime            Description = "operating_time"
	DescPower                    Description = "power"
	DescVolumeFlow               Description = "volume_flow"
	DescVolumeFlowExt            Description = "volume_flow_ext"
	DescMassFlow                 Description = "mass_flow"
	DescFlowTemperature          Description = "flow_temperature"
	DescReturnTemperature        Description = "return_temperature"
	DescTemperatureDifference    Description = "temperature_difference"
	DescExternalTemperature      Description = "external_temperature"
	DescPressure                 Description = "pressure"
	DescDate                     Description = "date"
	DescDateTime                 Description = "date_time"
	DescHCA                      Description = "hca"
	DescAveragingDuration        Description = "averaging_duration"
	DescActualityDuration        Description = "actuality_duration"
	DescFabricationNumber        Description = "fabrication_no"
	DescEnhancedIdentification   Description = "enhanced_identification"
	DescBusAddress               Description = "bus_address"
	DescUserDefined              Description = "user_defined"
	DescAny                      Description = "any"
	DescManufacturerSpecific     Description = "manufacturer_specific"
	DescCredit                   Description = "credit"
	DescDebit                    Description = "debit"
	DescAccessNumber             Description = "access_number"
	DescDeviceType               Description = "device_type"
	DescManufacturer             Description = "manufacturer"
	DescParameterSetID           Description = "parameter_set_id"
	DescModelVersion             Description = "model_version"
	DescHardwareVersion          Description = "hardware_version"
	DescFirmwareVersion          Description = "firmware_version"
	DescOtherSoftwareVersion     Description = "other_software_version"
	DescCustomerLocation         Description = "customer_location"
	DescCustomer                 Description = "customer"
	DescAccessCode               Description = "access_code"
	DescPassword                 Description = "password"
	DescErrorFlags               Description = "error_flags"
	DescErrorMask                Description = "error_mask"
	DescDigitalOutput            Description = "digital_output"
	DescDigitalInput             Description = "digital_input"
	DescBaudrate                 Description = "baudrate"
	DescResponseDelayTime        Description = "response_delay_time"
	DescRetry                    Description = "retry"
	DescStorageNumber            Description = "storage_number"
	DescStorageInterval          Description = "storage_interval"
	DescDurationSinceReadout     Description = "duration_since_readout"
	DescVoltage                  Description = "voltage"
	DescCurrent                  Description = "current"
	DescResetCounter             Description = "reset_counter"
	DescCumulationCounter        Description = "cumulation_counter"
	DescControlSignal            Description = "control_signal"
	DescDayOfWeek                Description = "day_of_week"
	DescWeekNumber               Description = "week_number"
	DescTimePointDayChange       Description = "time_point_day_change"
	DescParameterActivation      Description = "parameter_activation"
	DescSupplierInformation      Description = "supplier_information"
	DescDurationSinceCumulation  Description = "duration_since_cumulation"
	DescOperatingTimeBattery     Description = "operating_time_battery"
	DescBatteryChangeDateTime    Description = "battery_change_date_time"
	DescRemainingBatteryLifeTime Description = "remaining_battery_life_time"
	DescTemperatureLimit         Description = "temperature_limit"
	DescCumulatedMaxPower        Description = "cumulated_max_power"
	DescNotSupported             Description = "not_supported"
)

// Unit is the physical unit of a scaled value.
type Unit string

const (
	UnitNone         Unit = ""
	UnitWattHour     Unit = "Wh"
	UnitJoule        Unit = "J"
	UnitCalorie      Unit = "cal"
	UnitCubicMetre   Unit = "m^3"
	UnitCubicFeet    Unit = "ft^3"
	UnitUSGallon     Unit = "gal"
	UnitKilogram     Unit = "kg"
	UnitSecond       Unit = "s"
	UnitMinute       Unit = "min"
	UnitHour         Unit = "h"
	UnitDay          Unit = "d"
	UnitMonth        Unit = "month"
	UnitYear         Unit = "year"
	UnitWatt         Unit = "W"
	UnitJoulePerHour Unit = "J/h"
	UnitM3PerHour    Unit = "m^3/h"
	UnitM3PerMinute  Unit = "m^3/min"
	UnitM3PerSecond  Unit = "m^3/s"
	UnitKgPerHour    Unit = "kg/h"
	UnitCelsius      Unit = "°C"
	UnitFahrenheit   Unit = "°F"
	UnitKelvin       Unit = "K"
	UnitBar          Unit = "bar"
	UnitVolt         Unit = "V"
	UnitAmpere       Unit = "A"
	UnitCurrency     Unit = "currency"
	UnitBaud         Unit = "Bd"
)

var timeUnits = [4]Unit{UnitSecond, UnitMinute, UnitHour, UnitDay}

// describe fills Description, Unit and Multiplier from the VIF and its
// extensions.
func (r *Record) describe(vif byte, vifes []byte) {
	switch {
	case vif == 0xFB && len(vifes) > 0:
		r.describeFirstExtension(vifes[0] & 0x7F)
	case vif == 0xFD && len(vifes) > 0:
		r.describeSecondExtension(vifes[0] & 0x7F)
	default:
		r.describePrimary(vif & 0x7F)
	}
}

func (r *Record) set(d Description, u Unit, exp int) {
	r.Description = d
	r.Unit = u
	r.Multiplier = exp
}

func (r *Record) describePrimary(code byte) {
	n := int(code & 0x07)
	nn := int(code & 0x03)
	switch {
	case code <= 0x07:
		r.set(DescEnergy, UnitWattHour, n-3)
	case code <= 0x0F:
		r.set(DescEnergy, UnitJoule, n)
	case code <= 0x17:
		r.set(DescVolume, UnitCubicMetre, n-6)
	case code <= 0x1F:
		r.set(DescMass, UnitKilogram, n-3)
	case code <= 0x23:
		r.set(DescOnTime, timeUnits[nn], 0)
	case code <= 0x27:
		r.set(DescOperatingTime, timeUnits[nn], 0)
	case code <= 0x2F:
		r.set(DescPower, UnitWatt, n-3)
	case code <= 0x37:
		r.set(DescPower, UnitJoulePerHour, n)
	case code <= 0x3F:
		r.set(DescVolumeFlow, UnitM3PerHour, n-6)
	case code <= 0x47:
		r.set(DescVolumeFlowExt, UnitM3PerMinute, n-7)
	case code <= 0x4F:
		r.set(DescVolumeFlowExt, UnitM3PerSecond, n-9)
	case code <= 0x57:
		r.set(DescMassFlow, UnitKgPerHour, n-3)
	case code <= 0x5B:
		r.set(DescFlowTemperature, UnitCelsius, nn-3)
	case code <= 0x5F:
		r.set(DescReturnTemperature, UnitCelsius, nn-3)
	case code <= 0x63:
		r.set(DescTemperatureDifference, UnitKelvin, nn-3)
	case code <= 0x67:
		r.set(DescExternalTemperature, UnitCelsius, nn-3)
	case code <= 0x6B:
		r.set(DescPressure, UnitBar, nn-3)
	case code == 0x6C:
		r.set(DescDate, UnitNone, 0)
	case code == 0x6D:
		r.set(DescDateTime, UnitNone, 0)
	case code == 0x6E:
		r.set(DescHCA, UnitNone, 0)
	case code == 0x6F:
		r.set(DescNotSupported, UnitNone, 0)
	case code <= 0x73:
		r.set(DescAveragingDuration, timeUnits[nn], 0)
	case code <= 0x77:
		r.set(DescActualityDuration, timeUnits[nn], 0)
	case code == 0x78:
		r.set(DescFabricationNumber, UnitNone, 0)
	case code == 0x79:
		r.set(DescEnhancedIdentification, UnitNone, 0)
	case code == 0x7A:
		r.set(DescBusAddress, UnitNone, 0)
	case code == 0x7C:
		r.set(DescUserDefined, UnitNone, 0)
	case code == 0x7E:
		r.set(DescAny, UnitNone, 0)
	case code == 0x7F:
		r.set(DescManufacturerSpecific, UnitNone, 0)
	default:
		r.set(DescNotSupported, UnitNone, 0)
	}
}

// describeFirstExtension covers the VIF extension table introduced by 0xFB.
func (r *Record) describeFirstExtension(code byte) {
	n := int(code & 0x01)
	nn := int(code & 0x03)
	switch {
	case code <= 0x01:
		r.set(DescEnergy, UnitWattHour, n+5)
	case code >= 0x08 && code <= 0x09:
		r.set(DescEnergy, UnitJoule, n+8)
	case code >= 0x0C && code <= 0x0D:
		r.set(DescEnergy, UnitCalorie, n+5)
	case code >= 0x10 && code <= 0x11:
		r.set(DescVolume, UnitCubicMetre, n+2)
	case code >= 0x18 && code <= 0x19:
		r.set(DescMass, UnitKilogram, n+5)
	case code == 0x21:
		r.set(DescVolume, UnitCubicFeet, -1)
	case code == 0x22:
		r.set(DescVolume, UnitUSGallon, -1)
	case code == 0x23:
		r.set(DescVolume, UnitUSGallon, 0)
	case code >= 0x28 && code <= 0x29:
		r.set(DescPower, UnitWatt, n+5)
	case code >= 0x30 && code <= 0x31:
		r.set(DescPower, UnitJoulePerHour, n+8)
	case code >= 0x58 && code <= 0x5B:
		r.set(DescFlowTemperature, UnitFahrenheit, nn-3)
	case code >= 0x5C && code <= 0x5F:
		r.set(DescReturnTemperature, UnitFahrenheit, nn-3)
	case code >= 0x60 && code <= 0x63:
		r.set(DescTemperatureDifference, UnitFahrenheit, nn-3)
	case code >= 0x64 && code <= 0x67:
		r.set(DescExternalTemperature, UnitFahrenheit, nn-3)
	case code >= 0x70 && code <= 0x73:
		r.set(DescTemperatureLimit, UnitFahrenheit, nn-3)
	case code >= 0x74 && code <= 0x77:
		r.set(DescTemperatureLimit, UnitCelsius, nn-3)
	case code >= 0x78:
		r.set(DescCumulatedMaxPower, UnitWatt, int(code&0x07)-3)
	default:
		r.set(DescNotSupported, UnitNone, 0)
	}
}

// describeSecondExtension covers the VIF extension table introduced by 0xFD.
func (r *Record) describeSecondExtension(code byte) {
	nn := int(code & 0x03)
	switch {
	case code <= 0x03:
		r.set(DescCredit, UnitCurrency, nn-3)
	case code <= 0x07:
		r.set(DescDebit, UnitCurrency, nn-3)
	case code == 0x08:
		r.set(DescAccessNumber, UnitNone, 0)
	case code == 0x09:
		r.set(DescDeviceType, UnitNone, 0)
	case code == 0x0A:
		r.set(DescManufacturer, UnitNone, 0)
	case code == 0x0B:
		r.set(DescParameterSetID, UnitNone, 0)
	case code == 0x0C:
		r.set(DescModelVersion, UnitNone, 0)
	case code == 0x0D:
		r.set(DescHardwareVersion, UnitNone, 0)
	case code == 0x0E:
		r.set(DescFirmwareVersion, UnitNone, 0)
	case code == 0x0F:
		r.set(DescOtherSoftwareVersion, UnitNone, 0)
	case code == 0x10:
		r.set(DescCustomerLocation, UnitNone, 0)
	case code == 0x11:
		r.set(DescCustomer, UnitNone, 0)
	case code >= 0x12 && code <= 0x15:
		r.set(DescAccessCode, UnitNone, 0)
	case code == 0x16:
		r.set(DescPassword, UnitNone, 0)
	case code == 0x17:
		r.set(DescErrorFlags, UnitNone, 0)
	case code == 0x18:
		r.set(DescErrorMask, UnitNone, 0)
	case code == 0x1A:
		r.set(DescDigitalOutput, UnitNone, 0)
	case code == 0x1B:
		r.set(DescDigitalInput, UnitNone, 0)
	case code == 0x1C:
		r.set(DescBaudrate, UnitBaud, 0)
	case code == 0x1D:
		r.set(DescResponseDelayTime, UnitNone, 0)
	case code == 0x1E:
		r.set(DescRetry, UnitNone, 0)
	case code >= 0x20 && code <= 0x22:
		r.set(DescStorageNumber, UnitNone, 0)
	case code >= 0x24 && code <= 0x27:
		r.set(DescStorageInterval, timeUnits[nn], 0)
	case code == 0x28:
		r.set(DescStorageInterval, UnitMonth, 0)
	case code == 0x29:
		r.set(DescStorageInterval, UnitYear, 0)
	case code >= 0x2C && code <= 0x2F:
		r.set(DescDurationSinceReadout, timeUnits[nn], 0)
	case code >= 0x40 && code <= 0x4F:
		r.set(DescVoltage, UnitVolt, int(code&0x0F)-9)
	case code >= 0x50 && code <= 0x5F:
		r.set(DescCurrent, UnitAmpere, int(code&0x0F)-12)
	case code == 0x60:
		r.set(DescResetCounter, UnitNone, 0)
	case code == 0x61:
		r.set(DescCumulationCounter, UnitNone, 0)
	case code == 0x62:
		r.set(DescControlSignal, UnitNone, 0)
	case code == 0x63:
		r.set(DescDayOfWeek, UnitNone, 0)
	case code == 0x64:
		r.set(DescWeekNumber, UnitNone, 0)
	case code == 0x65:
		r.set(DescTimePointDayChange, UnitNone, 0)
	case code == 0x66:
		r.set(DescParameterActivation, UnitNone, 0)
	case code == 0x67:
		r.set(DescSupplierInformation, UnitNone, 0)
	case code >= 0x68 && code <= 0x6B:
		r.set(DescDurationSinceCumulation, timeUnits[nn], 0)
	case code >= 0x6C && code <= 0x6F:
		r.set(DescOperatingTimeBattery, timeUnits[nn], 0)
	case code == 0x70:
		r.set(DescBatteryChangeDateTime, UnitNone, 0)
	case code == 0x74:
		r.set(DescRemainingBatteryLifeTime, UnitDay, 0)
	default:
		r.set(DescNotSupported, UnitNone, 0)
	}
}
