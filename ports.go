package dmx

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ListPorts returns the names of the serial ports the OS currently reports.
// A failed query yields an empty list, so "no ports" and "could not
// enumerate" look the same; use AvailablePorts to tell them apart.
func (s *Service) ListPorts() []string {
	ports, err := s.AvailablePorts()
	if err != nil {
		s.Logger().Warn().Err(err).Msg("listing serial ports")
		return []string{}
	}
	return ports
}

// AvailablePorts returns the serial port names, or the OS/driver error.
func (s *Service) AvailablePorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	if ports == nil {
		ports = []string{}
	}
	return ports, nil
}

// DetailedPorts returns ports together with their USB identification, where
// the platform exposes it.
func (s *Service) DetailedPorts() ([]PortInfo, error) {
	ports, err := getDetailedPortsList()
	if err != nil {
		return nil, err
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		if p == nil {
			continue
		}
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return result, nil
}
