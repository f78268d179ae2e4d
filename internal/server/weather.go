package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
)

const defaultWeatherURL = "https://api.open-meteo.com/v1/forecast"

// WeatherHandler proxies current conditions for the destination so the UI
// can render its weather card without exposing a second upstream to the
// browser.
type WeatherHandler struct {
	BaseURL string
	Client  *http.Client
}

type weatherPayload struct {
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"windSpeed"`
	WeatherCode int     `json:"weatherCode"`
	IsDay       int     `json:"isDay"`
	Time        string  `json:"time"`
}

func (h *WeatherHandler) handle(c echo.Context) error {
	lat := c.QueryParam("lat")
	lng := c.QueryParam("lng")
	if lat == "" || lng == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lng are required")
	}

	base := h.BaseURL
	if base == "" {
		base = defaultWeatherURL
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	q := url.Values{}
	q.Set("latitude", lat)
	q.Set("longitude", lng)
	q.Set("current_weather", "true")

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "weather service unavailable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("weather service returned %d", resp.StatusCode))
	}

	var raw struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
			IsDay       int     `json:"is_day"`
			Time        string  `json:"time"`
		} `json:"current_weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "weather service returned bad data")
	}

	return c.JSON(http.StatusOK, weatherPayload{
		Temperature: raw.CurrentWeather.Temperature,
		WindSpeed:   raw.CurrentWeather.WindSpeed,
		WeatherCode: raw.CurrentWeather.WeatherCode,
		IsDay:       raw.CurrentWeather.IsDay,
		Time:        raw.CurrentWeather.Time,
	})
}
